package http_server

import (
	"chatrelay/internal/http/chathandler"
	"chatrelay/internal/services/presence"
	"chatrelay/internal/ws"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	wsSrv      *ws.WsServer
	clients    chathandler.ClientLister
	sessions   presence.IPresenceService
	gatherer   prometheus.Gatherer
	ctx        context.Context
}

func NewHttpServer(
	ctx context.Context,
	listenPort uint16,
	wsSrv *ws.WsServer,
	clients chathandler.ClientLister,
	sessions presence.IPresenceService,
	gatherer prometheus.Gatherer,
) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		wsSrv:      wsSrv,
		clients:    clients,
		sessions:   sessions,
		gatherer:   gatherer,
		ctx:        ctx,
	}
}

// Router builds the gin engine with every route of the service.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	routerEngine.Use(allowAnyOrigin())

	// websocket endpoint
	routerEngine.GET("/ws/:client_id", h.wsSrv.Handle)

	// REST API
	ch := chathandler.New(h.clients, h.sessions)
	ch.Register(routerEngine)

	routerEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	return routerEngine
}

// Start blocks serving HTTP until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler: h.Router(),
		// Hijacked websocket connections keep this context, so their
		// readers stop on shutdown.
		BaseContext: func(net.Listener) context.Context { return h.ctx },
	}
	zap.L().Info("http server listening", zap.String("addr", listenAddr))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// Create a context that times‑out after 10 s.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}
	return nil
}

// allowAnyOrigin answers CORS preflights and marks every response as
// readable from any origin.
func allowAnyOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		hdr := c.Writer.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
