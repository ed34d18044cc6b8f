package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pulse/ingest/internal/config"
	"pulse/ingest/internal/dedup"
	"pulse/ingest/internal/logging"
	"pulse/ingest/internal/model"
	"pulse/ingest/internal/monitoring"
	"pulse/ingest/internal/reddit"
	"pulse/ingest/internal/server"
	"pulse/ingest/internal/sink"
	"pulse/ingest/internal/source"
	"pulse/ingest/internal/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("trawler")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Trawler (Submission Ingestion)")

	cfg := config.LoadConfig()

	// Redis backs both the dedup store and the queue sink
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	store := dedup.NewStore(rdb, cfg.SeenTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("trawler", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("trawler", version.Version, version.GitCommit)

	metrics := &source.Metrics{
		Emitted:  metricsCollector.NewCounter("submissions_emitted_total", "Submissions delivered to the sink", []string{"path", "outcome"}),
		Skipped:  metricsCollector.NewCounter("submissions_skipped_total", "Submissions skipped before delivery", []string{"reason"}),
		Backoffs: metricsCollector.NewCounter("rate_limit_backoffs_total", "Provider rate-limit backoffs", nil).WithLabelValues(),
	}

	// Select the sink for the process lifetime
	var router sink.Router
	switch cfg.Sink {
	case config.SinkFirehose:
		schemaText, schema, err := model.LoadSchema(cfg.SchemaFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load Avro schema")
		}
		firehose, err := sink.NewFirehose(ctx, sink.FirehoseConfig{
			Brokers:     cfg.KafkaBrokers,
			RegistryURL: cfg.SchemaRegistryURL,
			Topic:       cfg.RawPostsTopic,
			SchemaText:  schemaText,
			Schema:      schema,
			Logger:      logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka sink")
		}
		router = firehose
		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(firehose.Client()))
	case config.SinkQueue:
		router = sink.NewQueue(rdb, cfg.RawPostsStream, cfg.RawPostsMaxLen, logger)
	default:
		logger.Fatalf("Unknown SINK %q (want %q or %q)", cfg.Sink, config.SinkQueue, config.SinkFirehose)
	}
	defer router.Close()

	healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(rdb))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"REDDIT_CLIENT_ID": cfg.RedditClientID,
		"SUBREDDITS":       cfg.Subreddits,
	}))

	// Provider client
	provider, err := reddit.NewClient(ctx, reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
		RPS:          cfg.RPS,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create provider client")
	}

	adapter := source.NewAdapter(source.Config{
		Source:       provider,
		Dedup:        store,
		Router:       router,
		Logger:       logger,
		Metrics:      metrics,
		Subreddits:   cfg.Subreddits,
		RPS:          cfg.RPS,
		SkipExisting: cfg.SkipExisting,
	})

	// Optional health check server
	if cfg.EnableHealthEndpoint {
		go startHealthServer(ctx, cfg.Port, healthChecker, metricsCollector, logger)
	}

	logger.WithFields(logging.Fields{
		"subreddits": cfg.Subreddits,
		"sink":       router.Name(),
		"rps":        cfg.RPS,
	}).Info("Streaming submissions")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Backfill runs to completion (or early cutoff) before live streaming.
		adapter.RunBackfill(ctx, time.Duration(cfg.BackfillMinutes)*time.Minute)
		if err := adapter.Run(ctx); err != nil {
			logger.WithError(err).Error("Source adapter error")
		}
	}()

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down Trawler...")

	cancel()
	<-done

	logger.WithField("sent", adapter.Emitted()).Info("Trawler stopped")
}

func startHealthServer(ctx context.Context, port string, healthChecker *monitoring.HealthChecker, metricsCollector *monitoring.MetricsCollector, logger logging.Logger) {
	router := server.SetupServiceRouter(logger, "trawler", healthChecker, metricsCollector)

	serverConfig := server.DefaultConfig("trawler", port)
	if err := server.Start(ctx, serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Health server error")
	}
}
