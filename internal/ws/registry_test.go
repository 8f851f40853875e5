package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry()
	a, _ := newFakeConn("x")
	b, _ := newFakeConn("y")
	c, _ := newFakeConn("x")

	for _, conn := range []*Connection{a, b, c} {
		require.NoError(t, r.Register(conn))
	}

	assert.Equal(t, []*Connection{a, b, c}, r.Snapshot())
	assert.Equal(t, []string{"x", "y", "x"}, r.Identifiers())
	assert.Equal(t, 3, r.Len())
	assert.NotEqual(t, a.SessionID, c.SessionID)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	a, _ := newFakeConn("x")

	require.NoError(t, r.Register(a))
	err := r.Register(a)

	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DeregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a, sa := newFakeConn("x")
	b, _ := newFakeConn("y")
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	assert.True(t, r.Deregister(a))
	after := r.Snapshot()
	assert.False(t, r.Deregister(a))

	assert.Equal(t, after, r.Snapshot())
	assert.Equal(t, []*Connection{b}, after)
	assert.Equal(t, int32(1), sa.closes.Load(), "handle closed exactly once")
}

func TestRegistry_DeregisterUnknown(t *testing.T) {
	r := NewRegistry()
	a, sa := newFakeConn("x")

	assert.False(t, r.Deregister(a))
	assert.Zero(t, sa.closes.Load())
}

func TestRegistry_ReRegisterWithNewHandle(t *testing.T) {
	r := NewRegistry()
	first, _ := newFakeConn("x")
	require.NoError(t, r.Register(first))
	r.Deregister(first)

	second, _ := newFakeConn("x")
	require.NoError(t, r.Register(second))

	assert.Equal(t, []*Connection{second}, r.Snapshot())
}

func TestRegistry_SnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	a, _ := newFakeConn("x")
	b, _ := newFakeConn("y")
	require.NoError(t, r.Register(a))

	snap := r.Snapshot()
	require.NoError(t, r.Register(b))
	r.Deregister(a)

	assert.Equal(t, []*Connection{a}, snap)
	assert.Equal(t, []*Connection{b}, r.Snapshot())
}

func TestRegistry_EmptySnapshot(t *testing.T) {
	assert.Empty(t, NewRegistry().Snapshot())
	assert.Empty(t, NewRegistry().Identifiers())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				c, _ := newFakeConn(fmt.Sprintf("w%d-%d", w, i))
				if err := r.Register(c); err != nil {
					t.Error(err)
					return
				}
				_ = r.Snapshot()
				if i%2 == 0 {
					r.Deregister(c)
					r.Deregister(c)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker/2, r.Len())
	seen := map[*Connection]bool{}
	for _, c := range r.Snapshot() {
		assert.False(t, seen[c], "no duplicates")
		seen[c] = true
	}
}
