package source

import (
	"context"
	"time"
)

// RunBackfill walks the reverse-chronological listing down to now-window and
// feeds each page through the same per-item path as live streaming. The
// early exit at the cutoff assumes the provider keeps the listing
// newest-first; that ordering is taken on trust, not verified.
//
// Backfill shares the adapter's dedup store, so items seen here are not
// re-emitted when live streaming starts. Any error aborts the backfill with
// a log line and hands off to streaming; backfill is a warm-up, never a
// reason to stay down.
func (a *Adapter) RunBackfill(ctx context.Context, window time.Duration) {
	if window <= 0 {
		return
	}

	logger := a.cfg.Logger
	cutoff := float64(time.Now().Add(-window).Unix())
	logger.WithField("window", window.String()).Info("Backfilling recent submissions")

	after := ""
	emitted := 0
pages:
	for {
		listing, err := a.cfg.Source.NewSubmissions(ctx, a.cfg.Subreddits, after, a.cfg.PageSize)
		if err != nil {
			logger.WithError(err).Warn("Backfill skipped due to error")
			return
		}
		if len(listing.Items) == 0 {
			break
		}

		for _, item := range listing.Items {
			if ctx.Err() != nil {
				return
			}
			if item.CreatedUTC < cutoff {
				// Newest-first: everything after this is older still.
				break pages
			}
			if a.processItem(ctx, item, "backfill") {
				emitted++
			}
		}

		if listing.After == "" {
			break
		}
		after = listing.After
	}

	logger.WithField("sent", emitted).Info("Backfill complete")
}
