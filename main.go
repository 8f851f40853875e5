package main

import (
	"chatrelay/internal/config"
	"chatrelay/internal/database/db_client"
	"chatrelay/internal/http/http_server"
	"chatrelay/internal/metrics"
	"chatrelay/internal/redis/redis_client"
	"chatrelay/internal/services/presence"
	"chatrelay/internal/ws"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if !cfg.LogDevelopment {
		prod, err := zap.NewProduction()
		if err != nil {
			Log.Fatal("Failed to build production logger", zap.Error(err))
		}
		Log = prod
		zap.ReplaceGlobals(Log)
	}
	defer Log.Sync()
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 4. Session log (optional Postgres)
	sessions := presence.NewNopService()
	if cfg.PostgresEnabled {
		pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		sessions = presence.NewPresenceService(pgDb, cfg.InstanceID)
		if err := sessions.EnsureSchema(ctx); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
		if n, err := sessions.CloseOrphans(ctx); err != nil {
			Log.Warn("pg-close-orphans", zap.Error(err))
		} else if n > 0 {
			Log.Info("closed orphaned sessions", zap.Int64("count", n))
		}
	}

	// 5. Registry + dispatcher, optionally fanned out through Redis
	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry, m, cfg.BroadcastParallelism)
	var broadcaster ws.Broadcaster = dispatcher

	if cfg.RedisEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		fanout := ws.NewRedisFanout(redisClient, cfg.RedisChannel, dispatcher)
		go fanout.Run(ctx)
		broadcaster = fanout
		Log.Info("redis relay enabled", zap.String("channel", cfg.RedisChannel))
	}

	// 6. Initialize the WS server
	wsSrv := ws.NewWsServer(dispatcher, broadcaster, sessions, m, ws.Options{
		WriteWait:  cfg.WsWriteTimeout,
		PingPeriod: cfg.WsPingPeriod,
		ReadLimit:  cfg.WsReadLimit,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, registry, sessions, reg)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		Log.Info("shutting down")
		_ = httpServer.Dispose()

		// Hijacked websocket handlers outlive Shutdown; let them announce
		// their leaves and close their sessions before Redis/Postgres go away.
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wsSrv.Wait(waitCtx); err != nil {
			Log.Warn("websocket handlers still running at exit", zap.Error(err))
		}
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	<-shutdownDone
}
