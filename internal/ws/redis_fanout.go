package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFanout extends the broadcast domain to every instance subscribed to
// the same Redis channel. Messages reach local connections only through Run.
type RedisFanout struct {
	rdb        redis.UniversalClient
	channel    string
	dispatcher *Dispatcher
}

var _ Broadcaster = (*RedisFanout)(nil)

func NewRedisFanout(rdb redis.UniversalClient, channel string, d *Dispatcher) *RedisFanout {
	return &RedisFanout{rdb: rdb, channel: channel, dispatcher: d}
}

// Broadcast publishes env for all instances. If Redis is unreachable the
// message is still delivered locally.
func (f *RedisFanout) Broadcast(ctx context.Context, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Error("ws.marshal_envelope", zap.Error(err))
		return
	}
	if err := f.rdb.Publish(ctx, f.channel, string(payload)).Err(); err != nil {
		zap.L().Warn("ws.redis_publish_failed", zap.String("channel", f.channel), zap.Error(err))
		f.dispatcher.Deliver(ctx, payload)
	}
}

// Run subscribes to the channel and delivers every message locally until
// ctx is done or the subscription closes.
func (f *RedisFanout) Run(ctx context.Context) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok { // Redis connection closed.
				return
			}
			f.handle(ctx, m.Payload)
		}
	}
}

func (f *RedisFanout) handle(ctx context.Context, payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || !env.valid() {
		zap.L().Warn("ws.redis_bad_envelope", zap.String("payload", payload), zap.Error(err))
		return
	}
	f.dispatcher.Deliver(ctx, []byte(payload))
}
