// Command spanindexer consumes annotated documents from Kafka, runs the
// span post-processing rules, stores the results in PostgreSQL and publishes
// them to the results topic. Metrics and health probes are served on the
// metrics port.
//
// Usage:
//
//	go run ./cmd/spanindexer [-config configs/development.yaml] [-flush-cache]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/consumer"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flushCache := flag.Bool("flush-cache", false, "drop cached results on start, e.g. after changing rules")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting span indexer",
		"topic", cfg.Kafka.Topics.AnnotatedDocuments,
		"workers", cfg.Processor.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	checker.Register("postgres", health.Ping(true, st.Ping))
	checker.Register("kafka", health.Ping(true, func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	// The cache is optional: without Redis every document is processed.
	var resultCache consumer.Cache
	rdb, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, result cache disabled", "error", err)
	} else {
		defer rdb.Close()
		rc := cache.New(rdb, cfg.Redis.CacheTTL, m)
		if *flushCache {
			if err := rc.Invalidate(ctx); err != nil {
				slog.Warn("failed to flush result cache", "error", err)
			}
		}
		resultCache = rc
		checker.Register("redis", health.Ping(false, rdb.Ping))
		checker.Register("result_cache", health.Condition(rc.Healthy, "circuit open"))
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SpanResults)
	defer producer.Close()

	proc := processor.New(cfg.Processor, m)
	handler := consumer.New(proc, st, resultCache, producer, m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnnotatedDocuments, handler.HandleMessage)

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker.Routes())
		defer shutdown(context.Background())
	}

	slog.Info("span indexer ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.AnnotatedDocuments,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("span indexer stopped")
}
