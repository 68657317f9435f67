package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"geo-chat-service/internal/config"
	grpcserver "geo-chat-service/internal/grpc"
	"geo-chat-service/internal/handlers"
	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/middleware"
	"geo-chat-service/internal/observability"
	"geo-chat-service/internal/rabbitmq"
	"geo-chat-service/internal/store"
	"geo-chat-service/internal/telemetry"
	"geo-chat-service/internal/worker"
	"geo-chat-service/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.NewLogger(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, *cfg)
	if err != nil {
		logger.Error("failed to init tracing", logging.Err(err))
		os.Exit(1)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready",
		slog.String("mode", rabbitmq.PublisherMode(publisher)),
		slog.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Service.Name, cfg.Service.Env, logger)

	presence := store.New()
	if cfg.Service.SeedWelcome {
		presence.SeedWelcome()
	}

	hub := ws.NewHub(logger)
	router := ws.NewRouter(presence, hub, auditEmitter, ws.RouterConfig{
		NotifyRadiusKm:  cfg.Presence.NotifyRadiusKm,
		DefaultRadiusKm: cfg.Presence.DefaultRadiusKm,
	}, logger)
	wsHandler := ws.NewHandler(hub, router, cfg.HTTP.AllowOrigins, cfg.WS, logger)

	sweeper := worker.NewSweeper(presence, router, cfg.Presence.SweepInterval, cfg.Presence.InactiveThreshold, logger)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	statsHandler := handlers.NewStatsHandler(presence, hub, cfg.Service.Version)

	if cfg.Service.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// middlewares
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(cfg.Service.Name))
	engine.Use(observability.HTTPMetricsMiddleware())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(cfg.HTTP.AllowOrigins))

	engine.GET("/", statsHandler.Root)
	engine.GET("/health", statsHandler.Health)
	engine.GET("/stats", statsHandler.Stats)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(engine, auditEmitter, cfg.Service.DebugRoutes)
	engine.NoRoute(handlers.NotFound)

	grpcHealth := grpcserver.NewHealthServer(cfg.Service.Name, logger)
	go func() {
		if err := grpcHealth.ListenAndServe(cfg.HTTP.GRPCAddr); err != nil {
			logger.Error("grpc health server error", logging.Err(err))
			stop()
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", logging.Err(err))
	}
	hub.CloseAll()
	grpcHealth.Stop(shutdownCtx)
	<-sweeperDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", logging.Err(err))
	}
	logger.Info("shutdown complete")
}
