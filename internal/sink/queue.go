package sink

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pulse/ingest/internal/model"
)

// streamAdder is the slice of the Redis API the queue sink needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// Queue is the soft sink: one JSON entry per record appended to a named,
// approximately length-capped Redis stream. Transient append failures drop
// the write and report Dropped rather than erroring, so the ingest loop is
// never blocked by the queue.
type Queue struct {
	redis  streamAdder
	stream string
	maxLen int64
	logger *logrus.Logger

	// failing tracks an ongoing degradation event so drops are warned once
	// per outage, not per record.
	failing bool
}

// NewQueue creates the Redis stream sink.
func NewQueue(redis streamAdder, stream string, maxLen int64, logger *logrus.Logger) *Queue {
	return &Queue{
		redis:  redis,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (q *Queue) Deliver(ctx context.Context, rec model.SubmissionRecord, opts Options) (Result, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		// Record shape is fixed; a marshal failure is a programming error.
		return Result{}, fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	err = q.redis.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		if !q.failing && q.logger != nil {
			q.logger.WithError(err).WithField("stream", q.stream).Warn("Queue sink unavailable; dropping writes until it recovers")
		}
		q.failing = true
		return Result{Outcome: Dropped}, nil
	}

	q.failing = false
	return Result{Outcome: Delivered}, nil
}

func (q *Queue) Flush(ctx context.Context) error {
	// XADD is synchronous; nothing is buffered.
	return nil
}

func (q *Queue) Close() {}

func (q *Queue) Name() string {
	return "redis-stream:" + q.stream
}
