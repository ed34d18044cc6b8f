// Package dedup provides the cross-restart deduplication store for ingested
// submissions. Membership is two-tier: an in-process set gives cheap
// rejection, Redis SET NX EX is the durable truth shared across instances.
package dedup

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// KeyPrefix namespaces dedup entries in Redis.
const KeyPrefix = "reddit:seen:"

// DefaultTTL is how long a seen id is remembered.
const DefaultTTL = 24 * time.Hour

// claimer is the slice of the Redis API the store needs. go-redis UniversalClient
// satisfies it; tests hand in a fake returning goredis.NewBoolResult values.
type claimer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
}

// Store gates each submission id exactly once per TTL window. When Redis
// becomes unreachable the store degrades to the in-process set for the rest
// of the session: lower precision across restarts, but the pipeline never
// blocks on a dead store.
type Store struct {
	redis  claimer
	ttl    time.Duration
	logger *logrus.Logger

	mu       sync.Mutex
	seen     map[string]struct{}
	degraded bool
}

// NewStore creates a dedup store backed by redis. A nil client starts the
// store directly in degraded local-only mode (used by the synthetic
// generators, which carry their own unique ids).
func NewStore(redis claimer, ttl time.Duration, logger *logrus.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:    redis,
		ttl:      ttl,
		logger:   logger,
		seen:     make(map[string]struct{}),
		degraded: redis == nil,
	}
}

// Claim atomically claims id. It returns true when the caller owns the first
// sighting and may emit the record; false means a duplicate to skip. The
// Redis write is a single SET NX EX, never a read-then-write, so concurrent
// instances sharing one store cannot both win.
func (s *Store) Claim(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.seen[id]; ok {
		s.mu.Unlock()
		return false
	}
	degraded := s.degraded
	s.mu.Unlock()

	if !degraded {
		ok, err := s.redis.SetNX(ctx, KeyPrefix+id, "1", s.ttl).Result()
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// The caller's context died mid-claim, which says nothing about
			// Redis health. The id stays unclaimed for the next run.
			return false
		case err != nil:
			s.degrade(err)
		case !ok:
			// Another instance (or a previous run) already produced this id.
			return false
		}
	}

	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
	return true
}

// Degraded reports whether the store has fallen back to local-only mode.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) degrade(err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()

	// Log the degradation once, not per item.
	if !already && s.logger != nil {
		s.logger.WithError(err).Warn("Dedup store unreachable; falling back to in-process dedup for this session")
	}
}
