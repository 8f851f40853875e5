package ws

import (
	"chatrelay/internal/metrics"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionLogTimeout = 2 * time.Second

// SessionRecorder is notified when connections start and end. Its errors
// are logged and otherwise ignored.
type SessionRecorder interface {
	Joined(ctx context.Context, sessionID uuid.UUID, clientID string) error
	Left(ctx context.Context, sessionID uuid.UUID) error
}

type Options struct {
	WriteWait  time.Duration
	PingPeriod time.Duration // 0 disables pings
	ReadLimit  int64
}

type WsServer struct {
	dispatcher  *Dispatcher
	broadcaster Broadcaster
	sessions    SessionRecorder
	metrics     *metrics.Metrics
	opts        Options
	active      sync.WaitGroup // one per running Handle
}

func NewWsServer(d *Dispatcher, b Broadcaster, sessions SessionRecorder, m *metrics.Metrics, opts Options) *WsServer {
	return &WsServer{
		dispatcher:  d,
		broadcaster: b,
		sessions:    sessions,
		metrics:     m,
		opts:        opts,
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle serves GET /ws/:client_id and returns when the connection ends.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	clientID := ginCtx.Param("client_id")
	if clientID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
		return
	}

	// Counted before the hijack: http.Server.Shutdown still tracks the
	// request until then, so Wait never races a late Add.
	s.active.Add(1)
	defer s.active.Done()

	rawConn, err := websocket.Accept(
		ginCtx.Writer, ginCtx.Request,
		&websocket.AcceptOptions{InsecureSkipVerify: true}, // any origin
	)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.ReadLimit)

	conn := NewConnection(clientID, &clientConn{rawConn: rawConn, writeWait: s.opts.WriteWait})
	s.serve(ginCtx.Request.Context(), conn, rawConn)
}

// Wait blocks until every connection handler has run its leave path, or ctx
// is done. Call it after the listener is closed so no handler can start.
func (s *WsServer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) serve(ctx context.Context, conn *Connection, rawConn *websocket.Conn) {
	log := zap.L().With(zap.String("client_id", conn.ID), zap.Stringer("session_id", conn.SessionID))

	// ─────────────────── Client joined ────────────────────────
	if err := s.dispatcher.Add(conn); err != nil {
		log.Error("ws.register", zap.Error(err))
		_ = rawConn.CloseNow()
		return
	}
	log.Info("ws.joined")
	s.recordJoin(ctx, conn)
	s.broadcaster.Broadcast(ctx, JoinedEnvelope(conn.ID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.opts.PingPeriod > 0 {
		go s.pinger(ctx, conn, rawConn)
	}

	s.reader(ctx, conn, rawConn)

	// ─────────────────── Client left ──────────────────────────
	// The request context may already be cancelled here; the remaining
	// connections still need the announcement.
	leaveCtx := context.WithoutCancel(ctx)
	s.dispatcher.Drop(conn)
	log.Info("ws.left")
	s.recordLeave(leaveCtx, conn)
	s.broadcaster.Broadcast(leaveCtx, LeftEnvelope(conn.ID))
}

// reader relays client frames in the order they arrive and returns on the
// first transport error.
func (s *WsServer) reader(ctx context.Context, conn *Connection, rawConn *websocket.Conn) {
	for {
		typ, data, err := rawConn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				zap.L().Debug("ws.read", zap.String("client_id", conn.ID), zap.Error(err))
			}
			return
		}

		content, err := s.decode(typ, data)
		if err != nil {
			s.metrics.MalformedInbound.Inc()
			zap.L().Warn("ws.malformed_payload", zap.String("client_id", conn.ID), zap.Error(err))
			continue
		}
		s.broadcaster.Broadcast(ctx, UserEnvelope(conn.ID, content))
	}
}

func (s *WsServer) decode(typ websocket.MessageType, data []byte) (string, error) {
	if typ != websocket.MessageText {
		return "", ErrMalformedInboundPayload
	}
	return ParseInbound(data)
}

func (s *WsServer) pinger(ctx context.Context, conn *Connection, rawConn *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.WriteWait)
			err := rawConn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					zap.L().Debug("ws.ping_failed", zap.String("client_id", conn.ID), zap.Error(err))
				}
				// Unblocks the reader, which then runs the leave path.
				s.dispatcher.Drop(conn)
				return
			}
		}
	}
}

func (s *WsServer) recordJoin(ctx context.Context, conn *Connection) {
	ctx, cancel := context.WithTimeout(ctx, sessionLogTimeout)
	defer cancel()
	if err := s.sessions.Joined(ctx, conn.SessionID, conn.ID); err != nil {
		zap.L().Warn("ws.session_joined", zap.String("client_id", conn.ID), zap.Error(err))
	}
}

func (s *WsServer) recordLeave(ctx context.Context, conn *Connection) {
	ctx, cancel := context.WithTimeout(ctx, sessionLogTimeout)
	defer cancel()
	if err := s.sessions.Left(ctx, conn.SessionID); err != nil {
		zap.L().Warn("ws.session_left", zap.String("client_id", conn.ID), zap.Error(err))
	}
}
