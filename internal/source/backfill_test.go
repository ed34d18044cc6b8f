package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulse/ingest/internal/reddit"
)

func minutesAgo(m int) float64 {
	return float64(time.Now().Add(-time.Duration(m) * time.Minute).Unix())
}

func TestRunBackfill_StopsAtCutoff(t *testing.T) {
	lister := &fakeLister{responses: []listerResponse{
		{listing: &reddit.Listing{
			Items: []reddit.Item{
				item("A", minutesAgo(10)),
				item("B", minutesAgo(30)),
				item("C", minutesAgo(90)),
			},
			After: "t3_more",
		}},
	}}
	router := &memoryRouter{}
	a := newTestAdapter(lister, router)

	a.RunBackfill(context.Background(), 60*time.Minute)

	if len(router.delivered) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(router.delivered))
	}
	if router.delivered[0].ID != "A" || router.delivered[1].ID != "B" {
		t.Fatalf("unexpected deliveries %+v", router.delivered)
	}
	// The cutoff exit must also stop pagination; only one page was served.
}

func TestRunBackfill_Paginates(t *testing.T) {
	lister := &fakeLister{responses: []listerResponse{
		{listing: &reddit.Listing{Items: []reddit.Item{item("A", minutesAgo(5))}, After: "t3_a"}},
		{listing: &reddit.Listing{Items: []reddit.Item{item("B", minutesAgo(10))}, After: ""}},
	}}
	router := &memoryRouter{}
	a := newTestAdapter(lister, router)

	a.RunBackfill(context.Background(), 60*time.Minute)

	if len(router.delivered) != 2 {
		t.Fatalf("expected both pages delivered, got %d", len(router.delivered))
	}
}

func TestRunBackfill_SharesDedupWithStream(t *testing.T) {
	lister := &fakeLister{responses: []listerResponse{
		{listing: &reddit.Listing{Items: []reddit.Item{item("A", minutesAgo(5))}}},
	}}
	router := &memoryRouter{}
	a := newTestAdapter(lister, router)

	a.RunBackfill(context.Background(), 60*time.Minute)
	if len(router.delivered) != 1 {
		t.Fatalf("backfill should deliver A once, got %d", len(router.delivered))
	}

	// The live path sees the same item again; the shared claim rejects it.
	if a.processItem(context.Background(), item("A", minutesAgo(5)), "stream") {
		t.Fatalf("item claimed during backfill must not re-emit live")
	}
}

func TestRunBackfill_ErrorIsNotFatal(t *testing.T) {
	lister := &fakeLister{responses: []listerResponse{
		{err: errors.New("listing unavailable")},
	}}
	router := &memoryRouter{}
	a := newTestAdapter(lister, router)

	a.RunBackfill(context.Background(), 60*time.Minute)
	if len(router.delivered) != 0 {
		t.Fatalf("no deliveries expected after backfill error")
	}
}

func TestRunBackfill_ZeroWindowDisabled(t *testing.T) {
	lister := &fakeLister{}
	router := &memoryRouter{}
	a := newTestAdapter(lister, router)

	a.RunBackfill(context.Background(), 0)
	if len(router.delivered) != 0 {
		t.Fatalf("zero window must not backfill")
	}
}
