package ws

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var ErrDuplicateRegistration = errors.New("connection already registered")

// Registry is the set of live connections, kept in insertion order.
type Registry struct {
	mu    sync.RWMutex
	conns []*Connection
	index map[*Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{index: map[*Connection]struct{}{}}
}

func (r *Registry) Register(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[c]; ok {
		return ErrDuplicateRegistration
	}
	r.index[c] = struct{}{}
	r.conns = append(r.conns, c)
	return nil
}

// Deregister removes c and closes its handle. Only the call that actually
// removed c closes it; later calls report false and do nothing.
func (r *Registry) Deregister(c *Connection) bool {
	r.mu.Lock()
	if _, ok := r.index[c]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.index, c)
	r.conns = slices.DeleteFunc(r.conns, func(x *Connection) bool { return x == c })
	r.mu.Unlock()

	// Outside the lock: closing may block on the transport.
	if err := c.sender.Close(); err != nil {
		zap.L().Debug("ws.close", zap.String("client_id", c.ID), zap.Error(err))
	}
	return true
}

// Snapshot returns a copy of the current membership. Later registry changes
// never show up in a returned slice.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.conns)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Identifiers lists the client ids in insertion order; duplicates are kept.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for _, c := range r.conns {
		ids = append(ids, c.ID)
	}
	return ids
}
