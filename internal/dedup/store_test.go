package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeClaimer struct {
	keys  map[string]bool
	err   error
	calls int
}

func (f *fakeClaimer) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd {
	f.calls++
	if f.err != nil {
		return goredis.NewBoolResult(false, f.err)
	}
	if f.keys[key] {
		return goredis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return goredis.NewBoolResult(true, nil)
}

func newFake() *fakeClaimer {
	return &fakeClaimer{keys: make(map[string]bool)}
}

func TestClaim_SecondClaimFails(t *testing.T) {
	s := NewStore(newFake(), time.Hour, logrus.New())
	ctx := context.Background()

	if !s.Claim(ctx, "A") {
		t.Fatalf("first claim of A should succeed")
	}
	if s.Claim(ctx, "A") {
		t.Fatalf("second claim of A should fail")
	}
	if !s.Claim(ctx, "B") {
		t.Fatalf("first claim of B should succeed")
	}
}

func TestClaim_SeenInStoreFromPreviousRun(t *testing.T) {
	fake := newFake()
	fake.keys[KeyPrefix+"A"] = true

	s := NewStore(fake, time.Hour, logrus.New())
	if s.Claim(context.Background(), "A") {
		t.Fatalf("id already claimed in store should be rejected")
	}
}

func TestClaim_DegradesOnceOnStoreFailure(t *testing.T) {
	fake := newFake()
	fake.err = errors.New("connection refused")
	logger, hook := test.NewNullLogger()

	s := NewStore(fake, time.Hour, logger)
	ctx := context.Background()

	// Store failure degrades but does not block the claim.
	if !s.Claim(ctx, "A") {
		t.Fatalf("claim should succeed locally when store is down")
	}
	if !s.Degraded() {
		t.Fatalf("store should be degraded after failure")
	}
	if s.Claim(ctx, "A") {
		t.Fatalf("local set should still reject duplicates")
	}
	if !s.Claim(ctx, "B") {
		t.Fatalf("new ids should still be claimable in degraded mode")
	}

	// No further Redis calls once degraded, and exactly one warning logged.
	if fake.calls != 1 {
		t.Fatalf("expected 1 redis call, got %d", fake.calls)
	}
	warns := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 degradation warning, got %d", warns)
	}
}

func TestClaim_ContextCancelDoesNotDegrade(t *testing.T) {
	fake := newFake()
	fake.err = context.Canceled
	logger, hook := test.NewNullLogger()

	s := NewStore(fake, time.Hour, logger)
	if s.Claim(context.Background(), "A") {
		t.Fatalf("cancelled claim must not count as a first sighting")
	}
	if s.Degraded() {
		t.Fatalf("a dead caller context must not degrade the store")
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected no log entries, got %d", len(hook.AllEntries()))
	}

	// The id stays unclaimed; a later attempt with a live context wins it.
	fake.err = nil
	if !s.Claim(context.Background(), "A") {
		t.Fatalf("id abandoned mid-claim should stay claimable")
	}
}

func TestNewStore_NilClientStartsDegraded(t *testing.T) {
	s := NewStore(nil, 0, nil)
	if !s.Degraded() {
		t.Fatalf("nil client should start degraded")
	}
	if !s.Claim(context.Background(), "A") || s.Claim(context.Background(), "A") {
		t.Fatalf("local-only claims should still dedupe")
	}
}
