// Command spanapi starts the annotated-document intake HTTP service.
//
// The service accepts documents via POST /api/v1/documents, validates them,
// persists them to PostgreSQL and publishes them to Kafka for the span
// indexer. GET /api/v1/documents/{id} reports the processing status and
// GET /api/v1/documents/{id}/result returns the stored result.
//
// Usage:
//
//	go run ./cmd/spanapi [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting span api", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnnotatedDocuments)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.AnnotatedDocuments)

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	checker.Register("postgres", health.Ping(true, st.Ping))
	checker.Register("kafka", health.Ping(false, func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	h := handler.New(publisher.New(st, producer), st, cfg.Server.MaxBodyBytes, cfg.Processor.MaxAnnotations)
	mux := http.NewServeMux()
	h.Register(mux)
	for pattern, probe := range checker.Routes() {
		mux.Handle("GET "+pattern, probe)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root http.Handler = mux
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		root = middleware.RateLimit(limiter, time.Minute)(root)
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(middleware.Metrics(m)(root)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("span api listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("span api stopped")
}
