// Package sink routes normalized submission records to exactly one delivery
// transport: the schema-validated Kafka firehose or the capped Redis stream
// queue. Both accept the same record shape keyed by record id; selection
// happens once at startup and holds for the process lifetime.
package sink

import (
	"context"

	"pulse/ingest/internal/model"
)

// Outcome classifies one delivery attempt.
type Outcome int

const (
	// Delivered means the transport accepted the record.
	Delivered Outcome = iota
	// Dropped means a soft transport discarded the write on transient
	// failure. Not an error: callers count it and move on.
	Dropped
)

// Result is the explicit per-record delivery outcome, so callers can meter
// soft failures instead of losing them to a swallowed error.
type Result struct {
	Outcome Outcome
}

// Options carries per-record delivery metadata.
type Options struct {
	// Subreddit is the originating community tag for provider items;
	// empty for synthetic traffic.
	Subreddit string
}

// Router delivers a record to the active transport. A returned error is a
// hard failure surfaced to the caller (schema violation, broker rejection);
// soft failures come back as Result{Dropped} with a nil error. The router
// never retries: the caller owns that decision.
type Router interface {
	Deliver(ctx context.Context, rec model.SubmissionRecord, opts Options) (Result, error)

	// Flush forces out any buffered writes. Called before shutdown.
	Flush(ctx context.Context) error

	Close()

	// Name identifies the transport for logs.
	Name() string
}
