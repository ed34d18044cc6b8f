// Package source drives ingestion from the provider: a bounded historical
// backfill followed by a live polling loop, both feeding the same
// filter -> dedup claim -> normalize -> sink path.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pulse/ingest/internal/dedup"
	"pulse/ingest/internal/normalize"
	"pulse/ingest/internal/ratelimit"
	"pulse/ingest/internal/reddit"
	"pulse/ingest/internal/sink"
)

// idleDelay is the pause between poll cycles that yielded nothing new. It is
// deliberately distinct from the provider rate-limit backoff.
const idleDelay = 500 * time.Millisecond

// deliverTimeout bounds a single sink delivery once the id has been claimed,
// including the in-flight item at shutdown.
const deliverTimeout = 10 * time.Second

// Lister is the provider listing the adapter consumes.
type Lister interface {
	NewSubmissions(ctx context.Context, subreddits, after string, limit int) (*reddit.Listing, error)
}

// Metrics are the adapter's Prometheus instruments. All fields are optional;
// tests run without them.
type Metrics struct {
	Emitted  *prometheus.CounterVec // labels: path, outcome
	Skipped  *prometheus.CounterVec // labels: reason
	Backoffs prometheus.Counter
}

func (m *Metrics) emitted(path, outcome string) {
	if m != nil && m.Emitted != nil {
		m.Emitted.WithLabelValues(path, outcome).Inc()
	}
}

func (m *Metrics) skipped(reason string) {
	if m != nil && m.Skipped != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) backoff() {
	if m != nil && m.Backoffs != nil {
		m.Backoffs.Inc()
	}
}

// Config wires the adapter's collaborators. The dedup store handle is passed
// in explicitly and shared with the backfill pass.
type Config struct {
	Source       Lister
	Dedup        *dedup.Store
	Router       sink.Router
	Logger       *logrus.Logger
	Metrics      *Metrics
	Subreddits   string
	RPS          float64 // emission pacing; <= 0 disables
	SkipExisting bool
	PageSize     int
}

// Adapter is the live ingestion state machine:
//
//	Connecting -> Streaming        on a fresh listing handle
//	Streaming  -> BackingOff       on a provider rate-limit rejection
//	BackingOff -> Connecting       after the governed sleep
//	any        -> Stopped          on shutdown, after a sink flush
//
// A sink delivery failure for one item never aborts the stream; the item is
// logged and lost. Because the dedup claim has already happened, a lost item
// is not retried: claim-then-confirm is an open gap owned by product, not
// something this loop papers over.
type Adapter struct {
	cfg     Config
	pacer   *rate.Limiter
	state   stateVar
	emitted int64

	// sleep is swappable so tests can observe backoff durations.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAdapter builds the live adapter.
func NewAdapter(cfg Config) *Adapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = reddit.MaxPageSize
	}
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Adapter{
		cfg:   cfg,
		pacer: pacer,
		sleep: sleepCtx,
	}
}

// State reports the adapter's current state.
func (a *Adapter) State() State {
	return a.state.get()
}

// Emitted reports how many records reached the sink since start.
func (a *Adapter) Emitted() int64 {
	return a.emitted
}

// Run streams live submissions until ctx is cancelled, then flushes the sink
// and stops. Always returns nil on clean shutdown.
func (a *Adapter) Run(ctx context.Context) error {
	logger := a.cfg.Logger
	var primed map[string]struct{}
	var hints ratelimit.Hints

	for {
		if ctx.Err() != nil {
			return a.stop(logger)
		}

		switch a.state.get() {
		case Connecting:
			primed = nil
			if a.cfg.SkipExisting {
				primed = a.primeBacklog(ctx)
			}
			a.state.set(Streaming)

		case Streaming:
			listing, err := a.cfg.Source.NewSubmissions(ctx, a.cfg.Subreddits, "", a.cfg.PageSize)
			if err != nil {
				var rle *reddit.RateLimitError
				switch {
				case errors.As(err, &rle):
					hints = rle.Hints
					a.state.set(BackingOff)
				case ctx.Err() != nil:
					// fall through to the Stopped check on the next turn
				default:
					// Transient provider hiccup: log and idle, never fatal.
					logger.WithError(err).Warn("Poll failed; retrying")
					_ = a.sleep(ctx, idleDelay)
				}
				continue
			}

			emitted := 0
			// Listings are newest-first; emit oldest-first within the page.
			for i := len(listing.Items) - 1; i >= 0; i-- {
				if ctx.Err() != nil {
					break
				}
				item := listing.Items[i]
				if primed != nil {
					if _, ok := primed[item.ID]; ok {
						continue
					}
				}
				if a.processItem(ctx, item, "stream") {
					emitted++
				}
			}
			if emitted == 0 {
				// Nothing new this cycle; avoid a busy loop.
				_ = a.sleep(ctx, idleDelay)
			}

		case BackingOff:
			d := ratelimit.Backoff(hints)
			a.cfg.Metrics.backoff()
			logger.WithFields(logrus.Fields{
				"sleep":       d.String(),
				"retry_after": hints.RetryAfter,
				"reset":       hints.Reset,
			}).Warn("Rate limited (429); backing off before reconnect")
			if err := a.sleep(ctx, d); err != nil {
				continue // cancelled; Stopped check runs next turn
			}
			a.state.set(Connecting)

		case Stopped:
			return nil
		}
	}
}

func (a *Adapter) stop(logger *logrus.Logger) error {
	a.state.set(Stopped)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.cfg.Router.Flush(flushCtx); err != nil {
		logger.WithError(err).Warn("Sink flush on shutdown failed")
	}
	logger.WithField("sent", a.emitted).Info("Source adapter stopped")
	return nil
}

// primeBacklog records the ids currently sitting in the listing so that only
// submissions arriving after this connection are emitted. The backlog is not
// claimed in the dedup store: skipping it is a per-connection choice, not a
// statement that the items were produced.
func (a *Adapter) primeBacklog(ctx context.Context) map[string]struct{} {
	listing, err := a.cfg.Source.NewSubmissions(ctx, a.cfg.Subreddits, "", a.cfg.PageSize)
	if err != nil {
		a.cfg.Logger.WithError(err).Warn("Could not prime existing backlog; it will be deduped instead")
		return nil
	}
	primed := make(map[string]struct{}, len(listing.Items))
	for _, item := range listing.Items {
		primed[item.ID] = struct{}{}
	}
	return primed
}

// processItem runs the shared per-item path: content filters, dedup claim,
// normalization, sink delivery. Returns true when the record reached the
// sink (delivered or soft-dropped).
func (a *Adapter) processItem(ctx context.Context, item reddit.Item, path string) bool {
	if item.Excluded() {
		a.cfg.Metrics.skipped("filtered")
		return false
	}
	// Pace before the claim. A shutdown arriving here abandons the item with
	// its id still unclaimed, so a later run emits it normally.
	if err := a.pacer.Wait(ctx); err != nil {
		return false
	}
	if !a.cfg.Dedup.Claim(ctx, item.ID) {
		// Duplicate: not an error, not worth a log line.
		a.cfg.Metrics.skipped("duplicate")
		return false
	}

	rec := normalize.Record(normalize.Submission{
		ID:             item.ID,
		Title:          item.Title,
		SelfText:       item.SelfText,
		IsSelf:         item.IsSelf,
		CreatedUTC:     item.CreatedUTC,
		Subreddit:      item.Subreddit,
		CrosspostTitle: item.CrosspostTitle(),
	})

	// The id is claimed now, so the record must reach the sink even when the
	// stop signal fires mid-item: delivery detaches from ctx and is bounded
	// by its own timeout instead.
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()
	res, err := a.cfg.Router.Deliver(deliverCtx, rec, sink.Options{Subreddit: item.Subreddit})
	if err != nil {
		// Hard sink failure for this item only. The id stays claimed, so the
		// item is permanently lost from this source; see package doc.
		a.cfg.Logger.WithError(err).WithField("id", rec.ID).Error("Sink delivery failed; continuing")
		a.cfg.Metrics.skipped("sink_error")
		return false
	}

	switch res.Outcome {
	case sink.Dropped:
		a.cfg.Metrics.emitted(path, "dropped")
	default:
		a.cfg.Metrics.emitted(path, "delivered")
	}
	a.emitted++
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
