// Squall drives the downstream anomaly detector with a deterministic spike:
// a few evenly spaced keyword pulses build a low-variance baseline, then one
// oversized burst trips the z-score threshold. Queue sink only; the pulses
// must land in distinct scheduler windows, which Kafka batching would blur.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pulse/ingest/internal/config"
	"pulse/ingest/internal/logging"
	"pulse/ingest/internal/model"
)

// schedulerInterval matches the downstream trend scheduler's window (5s)
// plus a safety buffer, so consecutive pulses count in separate windows.
const schedulerInterval = 5200 * time.Millisecond

func main() {
	var (
		keyword  string
		pulses   int
		baseline int
		spike    int
		clear    bool
		showZ    bool
	)

	cmd := &cobra.Command{
		Use:   "squall",
		Short: "Send a deterministic keyword spike through the queue sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(keyword, pulses, baseline, spike, clear, showZ)
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "pulsecheck", "keyword every generated post consists of")
	cmd.Flags().IntVar(&pulses, "pulses", 5, "baseline pulses before the spike (downstream min-samples)")
	cmd.Flags().IntVar(&baseline, "baseline", 3, "posts per baseline pulse")
	cmd.Flags().IntVar(&spike, "spike", 50, "posts in the final spike")
	cmd.Flags().BoolVar(&clear, "clear", false, "reset downstream trend state for the keyword first")
	cmd.Flags().BoolVar(&showZ, "show-z", false, "read the trend history back after the spike and report the z-score")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(keyword string, pulses, baseline, spike int, clear, showZ bool) error {
	logger := logging.NewLoggerWithService("squall")
	config.LoadEnv(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	})
	defer rdb.Close()

	stream := config.GetEnv("RAW_POSTS_STREAM", "raw_posts")
	maxLen := int64(config.GetEnvInt("RAW_POSTS_MAXLEN", 100000))

	if clear {
		if err := clearState(ctx, rdb, keyword); err != nil {
			return fmt.Errorf("clear state for %q: %w", keyword, err)
		}
		logger.WithField("keyword", keyword).Info("Cleared downstream trend state")
	}

	for i := 1; i <= pulses; i++ {
		if err := sendPulse(ctx, rdb, stream, maxLen, keyword, baseline); err != nil {
			return err
		}
		logger.WithFields(logging.Fields{"pulse": i, "posts": baseline}).Info("Baseline pulse sent")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(schedulerInterval):
		}
	}

	if err := sendPulse(ctx, rdb, stream, maxLen, keyword, spike); err != nil {
		return err
	}
	logger.WithFields(logging.Fields{"keyword": keyword, "posts": spike}).Info("Spike sent")

	if showZ {
		// Give the scheduler one tick to fold the spike into the history.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(schedulerInterval + 2*time.Second):
		}
		reportZ(ctx, rdb, logger, keyword)
	}
	return nil
}

// reportZ reads the detector's trend history back and recomputes the z-score
// it saw: the newest window count against the mean and sample deviation of
// the older ones.
func reportZ(ctx context.Context, rdb *goredis.Client, logger logging.Logger, keyword string) {
	counts, err := rdb.LRange(ctx, "trends:history:"+keyword, 0, -1).Result()
	if err != nil {
		logger.WithError(err).Warn("Could not read trend history")
		return
	}
	history := make([]float64, 0, len(counts))
	for _, c := range counts {
		n, err := strconv.ParseFloat(c, 64)
		if err != nil {
			logger.WithError(err).WithField("value", c).Warn("Malformed trend history entry")
			return
		}
		history = append(history, n)
	}

	z, mean, sd, ok := zScore(history)
	if !ok {
		logger.WithField("samples", len(history)).Info("Not enough history for a z-score yet")
		return
	}

	fields := logging.Fields{
		"baseline_n": len(history) - 1,
		"mean":       mean,
		"sd":         sd,
		"current":    history[0],
		"z":          z,
	}
	lastZ, err := rdb.Get(ctx, "anomaly:last_emitted_z:"+keyword).Result()
	switch {
	case err == nil:
		fields["emitted_z"] = lastZ
	case errors.Is(err, goredis.Nil):
		fields["emitted_z"] = "none"
	}
	logger.WithFields(fields).Info("Post-spike z-score")
}

// zScore scores history[0] against the rest using the sample standard
// deviation. ok is false when the baseline is too short or flat.
func zScore(history []float64) (z, mean, sd float64, ok bool) {
	if len(history) < 3 {
		return 0, 0, 0, false
	}
	baseline := history[1:]
	for _, x := range baseline {
		mean += x
	}
	mean /= float64(len(baseline))

	var variance float64
	for _, x := range baseline {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(baseline) - 1)
	sd = math.Sqrt(variance)
	if sd == 0 {
		return 0, mean, 0, false
	}
	return (history[0] - mean) / sd, mean, sd, true
}

// sendPulse appends a burst of keyword-only posts in one pipeline round trip
// so the whole pulse lands inside a single scheduler window.
func sendPulse(ctx context.Context, rdb *goredis.Client, stream string, maxLen int64, keyword string, posts int) error {
	pipe := rdb.Pipeline()
	for i := 0; i < posts; i++ {
		rec := model.SubmissionRecord{
			ID:        uuid.NewString(),
			Text:      model.Truncate(keyword),
			Timestamp: time.Now().UnixMilli(),
			Source:    "demo-spike",
			Lang:      "en",
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: stream,
			MaxLen: maxLen,
			Approx: true,
			Values: map[string]interface{}{"payload": payload},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("send pulse: %w", err)
	}
	return nil
}

// clearState removes the downstream trend/anomaly keys for a keyword so the
// baseline starts from nothing.
func clearState(ctx context.Context, rdb *goredis.Client, keyword string) error {
	pipe := rdb.Pipeline()
	pipe.Del(ctx, "trends:history:"+keyword)
	pipe.ZRem(ctx, "trends:global", keyword)
	pipe.HDel(ctx, "trends:last_counts", keyword)
	pipe.Del(ctx, "anomaly:last_emitted_z:"+keyword)
	pipe.Del(ctx, "trends:df:"+keyword)
	_, err := pipe.Exec(ctx)
	return err
}
