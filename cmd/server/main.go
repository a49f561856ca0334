package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/cache"
	"github.com/pesio-ai/be-sow-approvals/internal/client"
	"github.com/pesio-ai/be-sow-approvals/internal/config"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/handler"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
	"github.com/pesio-ai/be-sow-approvals/internal/repository"
	"github.com/pesio-ai/be-sow-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting SOW Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		DSN:         cfg.Database.DSN(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Database migrations applied")
	}

	// Catalog cache. The service takes an interface, so a disabled cache must
	// stay an untyped nil.
	var catalogCache service.CatalogCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, catalog cache disabled")
		} else {
			catalogCache = cache.NewCatalogCache(rdb, cfg.Redis.CatalogTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Catalog cache enabled")
		}
	}

	// Workflow notifications
	var notifier service.Notifier
	if cfg.NATS.Enabled {
		nc, err := client.ConnectNATS(ctx, cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unreachable, notifications disabled")
		} else {
			defer nc.Close()
			notifier = client.NewNotificationPublisher(nc, log.Component("notifications").Logger)
			log.Info().Str("url", cfg.NATS.URL).Msg("Notification publishing enabled")
		}
	}

	// Initialize repositories
	stagesRepo := repository.NewApprovalStagesRepository(db)
	rulesRepo := repository.NewApprovalRulesRepository(db)
	stepsRepo := repository.NewApprovalStepsRepository(db)
	workflowRepo := repository.NewApprovalWorkflowRepository(db)
	auditRepo := repository.NewApprovalAuditRepository(db)
	commentsRepo := repository.NewCommentsRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	// Initialize services
	catalogService := service.NewCatalogService(stagesRepo, rulesRepo, catalogCache, log.Component("catalog"))
	routingService := service.NewApprovalRoutingService(
		catalogService, documentRepo, stepsRepo, workflowRepo, commentsRepo, auditRepo, notifier,
		log.Component("workflow"))
	commentService := service.NewCommentService(documentRepo, commentsRepo, auditRepo, log.Component("comments"))
	documentService := service.NewDocumentService(documentRepo, log.Component("documents"))

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// HTTP server
	limiter := handler.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)
	go sweepLimiter(ctx, limiter)

	httpHandler := handler.NewHTTPHandler(routingService, commentService, catalogService, documentService, db, log)
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.NewRouter(httpHandler, handler.RouterConfig{
			Verifier:       verifier,
			Limiter:        limiter,
			RequestTimeout: cfg.Server.RequestTimeout,
		}, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLoggingInterceptor(log.Component("grpc")),
		handler.UnaryAuthInterceptor(verifier),
	))
	handler.RegisterWorkflowServer(grpcServer, handler.NewGRPCHandler(routingService, commentService, log.Logger))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.WorkflowServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer) // Enable reflection for debugging

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

func sweepLimiter(ctx context.Context, limiter *handler.RateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			limiter.Sweep(now)
		}
	}
}
