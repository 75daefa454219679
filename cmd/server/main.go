package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/storefront-cart/internal/adapter/catalog"
	"github.com/rl1809/storefront-cart/internal/adapter/handler"
	"github.com/rl1809/storefront-cart/internal/adapter/notify"
	"github.com/rl1809/storefront-cart/internal/adapter/storage"
	"github.com/rl1809/storefront-cart/internal/config"
	"github.com/rl1809/storefront-cart/internal/core/service"
	"github.com/rl1809/storefront-cart/internal/port"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	shutdownTracing, err := initTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	var closers []io.Closer

	// Initialize Redis
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 10,
		})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			log.Warnf("failed to instrument redis: %v", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		closers = append(closers, rdb)
		log.Info("connected to redis")
	}

	// Initialize adapters
	productCatalog, err := newCatalog(ctx, cfg, rdb, log, &closers)
	if err != nil {
		log.Fatalf("failed to init catalog: %v", err)
	}
	kv, err := newKV(ctx, cfg, rdb, &closers)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	log.WithFields(logrus.Fields{
		"catalog": cfg.CatalogBackend,
		"storage": cfg.StorageBackend,
		"cache":   cfg.StockCache,
	}).Info("adapters ready")

	// Initialize service
	feed := notify.NewFeed(cfg.NoticeBuffer)
	cartService := service.NewCartService(ctx, productCatalog, kv, service.Options{
		StorageKey: cfg.StorageKey,
		Notifier:   notify.Multi(notify.NewLogNotifier(log), feed),
		Logger:     log,
	})

	// Initialize gRPC server
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	handler.RegisterCartServer(grpcServer, handler.NewGRPCHandler(cartService))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(cartService, feed).Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnf("tracing shutdown: %v", err)
	}
	log.Info("connections closed")
}

func newCatalog(ctx context.Context, cfg config.Config, rdb *redis.Client, log *logrus.Logger, closers *[]io.Closer) (port.ProductCatalog, error) {
	var base port.ProductCatalog

	switch cfg.CatalogBackend {
	case config.CatalogMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		*closers = append(*closers, db)
		log.Info("connected to mysql")
		base = catalog.NewMySQLCatalog(db)
	default:
		base = catalog.NewHTTPCatalog(cfg.CatalogURL, cfg.CatalogTimeout, log)
	}

	if cfg.StockCache {
		return catalog.NewCachedCatalog(base, rdb, cfg.ProductCacheTTL, cfg.StockCacheTTL, log), nil
	}
	return base, nil
}

func newKV(ctx context.Context, cfg config.Config, rdb *redis.Client, closers *[]io.Closer) (port.PersistentKV, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		return storage.NewRedisKV(rdb), nil
	case config.StorageMemory:
		return storage.NewMemoryKV(), nil
	default:
		kv, err := storage.OpenSQLiteKV(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, kv)
		return kv, nil
	}
}
