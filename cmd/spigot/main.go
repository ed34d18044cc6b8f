// Spigot produces synthetic submission records for load testing the pulse
// pipeline. Records flow through the same sink contract as provider items,
// so the downstream processors cannot tell them apart from real traffic.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"pulse/ingest/internal/config"
	"pulse/ingest/internal/logging"
	"pulse/ingest/internal/model"
	"pulse/ingest/internal/sink"
)

var samples = []string{
	"New iPhone release looks amazing!",
	"Is the stock market crashing today?",
	"Best pizza places in NYC?",
	"Breaking news: major outage reported",
	"How to learn Spring Boot quickly",
	"Python vs Java for data engineering",
	"Does anyone use Redis streams?",
	"Kafka exactly-once semantics explained",
	"Chart.js tips for real-time dashboards",
	"AWS MSK pricing discussion thread",
}

func main() {
	var (
		count    int
		rps      float64
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "spigot",
		Short: "Produce synthetic submission records into the configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(count, rps, duration)
		},
	}
	cmd.Flags().IntVar(&count, "count", 50, "number of records to send (ignored if --duration is set)")
	cmd.Flags().Float64Var(&rps, "rps", 5, "records per second")
	cmd.Flags().DurationVar(&duration, "duration", 0, "run continuously for this long instead of a fixed count")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(count int, rps float64, duration time.Duration) error {
	logger := logging.NewLoggerWithService("spigot")
	config.LoadEnv(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	router, err := openRouter(ctx, logger)
	if err != nil {
		return err
	}
	defer router.Close()

	pacer := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		pacer = rate.NewLimiter(rate.Limit(rps), 1)
	}

	logger.WithFields(logging.Fields{
		"sink":     router.Name(),
		"rps":      rps,
		"count":    count,
		"duration": duration.String(),
	}).Info("Producing synthetic records")

	sent, dropped := 0, 0
	deadline := time.Time{}
	if duration > 0 {
		deadline = time.Now().Add(duration)
	}

	for {
		if duration > 0 {
			if time.Now().After(deadline) {
				break
			}
		} else if sent >= count {
			break
		}
		if err := pacer.Wait(ctx); err != nil {
			break // interrupted
		}

		res, err := router.Deliver(ctx, generate(), sink.Options{})
		if err != nil {
			logger.WithError(err).Error("Delivery failed")
			continue
		}
		if res.Outcome == sink.Dropped {
			dropped++
		}
		sent++
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := router.Flush(flushCtx); err != nil {
		logger.WithError(err).Warn("Flush failed")
	}

	logger.WithFields(logging.Fields{"sent": sent, "dropped": dropped}).Info("Done")
	return nil
}

func generate() model.SubmissionRecord {
	return model.SubmissionRecord{
		ID:        uuid.NewString(),
		Text:      samples[rand.Intn(len(samples))],
		Timestamp: time.Now().UnixMilli(),
		Source:    "synthetic",
		Lang:      "en",
	}
}

// openRouter selects the same sink the trawler would, from the same
// environment surface.
func openRouter(ctx context.Context, logger logging.Logger) (sink.Router, error) {
	switch config.Sink(strings.ToLower(config.GetEnv("SINK", "redis"))) {
	case config.SinkFirehose:
		schemaText, schema, err := model.LoadSchema(config.GetEnv("SCHEMA_FILE", ""))
		if err != nil {
			return nil, err
		}
		return sink.NewFirehose(ctx, sink.FirehoseConfig{
			Brokers:     strings.Split(config.GetEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			RegistryURL: config.GetEnv("SCHEMA_REGISTRY_URL", "http://localhost:8081"),
			Topic:       config.GetEnv("RAW_POSTS_TOPIC", config.GetEnv("TOPIC", "raw_social_posts")),
			SchemaText:  schemaText,
			Schema:      schema,
			Logger:      logger,
		})
	default:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
		stream := config.GetEnv("RAW_POSTS_STREAM", "raw_posts")
		maxLen := int64(config.GetEnvInt("RAW_POSTS_MAXLEN", 100000))
		return sink.NewQueue(rdb, stream, maxLen, logger), nil
	}
}
