package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/workspace"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	h "github.com/fjod/go_cart/storefront/internal/http"
)

func main() {
	cfg := config.Load()

	log := logger.New("storefront", cfg.LogLevel)
	defer log.Sync()
	zap.ReplaceGlobals(log.Zap())
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "storefront starting", zap.String("storage", cfg.Storage.Driver))

	// Storage
	store, closeStore, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Error(ctx, "failed to open storage", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn(context.Background(), "storage close failed", zap.Error(err))
		}
	}()
	if p, ok := store.(storage.Purger); ok && cfg.Storage.TTL > 0 {
		go storage.NewSweeper(p, cfg.Storage.TTL, time.Hour, log).Run(ctx)
	}

	// Backend
	client, err := gateway.New(gateway.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
	}, log)
	if err != nil {
		log.Error(ctx, "invalid backend configuration", zap.Error(err))
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, log, cfg.KafkaBrokers...)
		log.Info(ctx, "publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn(context.Background(), "event publisher close failed", zap.Error(err))
		}
	}()

	registry, err := workspace.NewRegistry(cfg.MaxWorkspaces, &workspace.Shared{
		Store:            store,
		Client:           client,
		Events:           publisher,
		Log:              log,
		CooldownInterval: cfg.CooldownInterval,
		OtpEvery:         cfg.OtpEvery,
		OtpBurst:         cfg.OtpBurst,
	})
	if err != nil {
		log.Error(ctx, "failed to create workspace registry", zap.Error(err))
		os.Exit(1)
	}
	defer registry.Close()

	cat := catalog.New(
		gateway.NewProductsGateway(client, gateway.Anonymous{}),
		gateway.NewCategoriesGateway(client, gateway.Anonymous{}),
		storage.Prefixed(store, "catalog"),
		cfg.CatalogCacheTTL,
		log,
	)

	router := h.NewRouter(h.RouterConfig{
		Registry:           registry,
		Catalog:            cat,
		Log:                log,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CookieSecure:       cfg.CookieSecure,
		CookieMaxAge:       cfg.Storage.TTL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(ctx, "HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server error", zap.Error(err))
			stop()
		}
	}()

	// Admin gRPC: health and reflection only.
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.AdminGRPCPort))
	if err != nil {
		log.Error(ctx, "failed to listen", zap.Error(err))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Info(ctx, "admin gRPC listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error(ctx, "admin gRPC error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info(context.Background(), "server exited")
}
