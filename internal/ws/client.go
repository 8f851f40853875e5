package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Sender is the send half of a connection handle. Close must unblock any
// pending read on the same transport.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Connection is one live client session.
type Connection struct {
	ID        string    // caller supplied, not unique
	SessionID uuid.UUID // server generated, unique
	sender    Sender
}

func NewConnection(id string, sender Sender) *Connection {
	return &Connection{ID: id, SessionID: uuid.New(), sender: sender}
}

// clientConn adapts a websocket.Conn to Sender with a bounded write.
type clientConn struct {
	rawConn   *websocket.Conn
	writeWait time.Duration
}

func (c *clientConn) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeWait)
	defer cancel()
	return c.rawConn.Write(ctx, websocket.MessageText, payload)
}

func (c *clientConn) Close() error {
	return c.rawConn.CloseNow()
}
