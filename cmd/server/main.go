package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront-ledger/internal/adapter/handler"
	"github.com/rl1809/storefront-ledger/internal/adapter/handler/pb"
	"github.com/rl1809/storefront-ledger/internal/adapter/messaging"
	"github.com/rl1809/storefront-ledger/internal/adapter/storage"
	"github.com/rl1809/storefront-ledger/internal/config"
	"github.com/rl1809/storefront-ledger/internal/core/service"
	"github.com/rl1809/storefront-ledger/internal/platform/observability"
	"github.com/rl1809/storefront-ledger/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tp, shutdownTracing, err := observability.SetupTracingSDK(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	shutdownLogging, err := observability.SetupLoggingSDK(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to set up log export: %v", err)
	}
	shutdownTelemetry := observability.JoinShutdown(shutdownTracing, shutdownLogging)

	logger := observability.NewLogger(cfg.OtelEndpoint != "")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	store := storage.NewMySQLAdapter(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize services
	ledger := service.NewLedger(store, cfg.OrdersTopic, logger)
	orderService := service.NewOrderService(ledger, store, storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL), logger, cfg.LedgerTimeout)

	// Start outbox relay
	tracerProvider := otel.GetTracerProvider()
	if tp != nil {
		tracerProvider = tp
	}
	producer, err := messaging.NewInstrumentedWriter(cfg.KafkaBrokers, config.ServiceName, tracerProvider)
	if err != nil {
		logger.Fatal("failed to create kafka writer", zap.Error(err))
	}
	publisher := messaging.NewKafkaPublisher(producer)

	relayCtx, stopRelay := context.WithCancel(ctx)
	outboxRelay := relay.NewOutboxRelay(store, publisher, logger, relay.Options{
		Workers:   cfg.RelayWorkers,
		BatchSize: cfg.RelayBatch,
		Interval:  cfg.RelayInterval,
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxRelay.Run(relayCtx)
	}()

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, store, store, logger)
	limiter := handler.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Unpublished events stay in the outbox for the next start.
	stopRelay()
	wg.Wait()
	if err := publisher.Close(); err != nil {
		logger.Error("failed to close kafka writer", zap.Error(err))
	}
	logger.Info("outbox relay stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", zap.Error(err))
	}
}
