package ws

import (
	"chatrelay/internal/metrics"
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Broadcaster hands one envelope to every live connection, on this
// instance or, with the Redis relay, on all of them.
type Broadcaster interface {
	Broadcast(ctx context.Context, env Envelope)
}

// Dispatcher fans messages out to the local registry. Delivery is best
// effort: a failed send removes the recipient and is never reported back.
type Dispatcher struct {
	registry    *Registry
	metrics     *metrics.Metrics
	parallelism int
}

var _ Broadcaster = (*Dispatcher)(nil)

func NewDispatcher(registry *Registry, m *metrics.Metrics, parallelism int) *Dispatcher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Dispatcher{registry: registry, metrics: m, parallelism: parallelism}
}

func (d *Dispatcher) Broadcast(ctx context.Context, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Error("ws.marshal_envelope", zap.Error(err))
		return
	}
	d.Deliver(ctx, payload)
}

// Deliver sends an already serialized envelope to a snapshot of the
// registry and returns once every send attempt has finished.
func (d *Dispatcher) Deliver(ctx context.Context, payload []byte) {
	conns := d.registry.Snapshot()
	d.metrics.Broadcasts.Inc()

	// Do the I/O outside the registry lock, a bounded number at a time.
	var g errgroup.Group
	g.SetLimit(d.parallelism)
	for _, c := range conns {
		g.Go(func() error {
			if err := c.sender.Send(ctx, payload); err != nil {
				d.metrics.SendFailures.Inc()
				zap.L().Warn("ws.send_failed",
					zap.String("client_id", c.ID),
					zap.Stringer("session_id", c.SessionID),
					zap.Error(err),
				)
				d.Drop(c)
				return nil
			}
			d.metrics.Deliveries.Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// Drop deregisters c. Only the call that removed c moves the gauge.
func (d *Dispatcher) Drop(c *Connection) bool {
	removed := d.registry.Deregister(c)
	if removed {
		d.metrics.ActiveConnections.Dec()
	}
	return removed
}

// Add registers c and counts it in the connection gauge.
func (d *Dispatcher) Add(c *Connection) error {
	if err := d.registry.Register(c); err != nil {
		return err
	}
	d.metrics.ActiveConnections.Inc()
	return nil
}
