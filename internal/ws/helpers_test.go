package ws

import (
	"chatrelay/internal/metrics"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeSender records every payload it is asked to send.
type fakeSender struct {
	mu      sync.Mutex
	frames  [][]byte
	fail    bool
	release chan struct{} // when set, Send blocks until closed
	closes  atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, payload []byte) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail {
		return errBrokenPipe
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), payload...))
	return nil
}

func (f *fakeSender) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeSender) received() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, b := range f.frames {
		var env Envelope
		if err := json.Unmarshal(b, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSender) raw() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, b := range f.frames {
		out = append(out, string(b))
	}
	return out
}

func newFakeConn(id string) (*Connection, *fakeSender) {
	s := &fakeSender{}
	return NewConnection(id, s), s
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}
