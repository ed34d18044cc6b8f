// Package ratelimit computes backoff delays from provider rate-limit hints.
package ratelimit

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	// FloorSeconds is the minimum backoff after a rate-limit rejection.
	FloorSeconds = 60

	// Jitter bounds, uniform in [JitterMinSeconds, JitterMaxSeconds), keep
	// multiple ingestion instances from retrying in lockstep.
	JitterMinSeconds = 1
	JitterMaxSeconds = 5
)

// Hints carries the provider-supplied backoff hints from a rate-limit
// rejection. Zero values mean the hint was absent or malformed.
type Hints struct {
	RetryAfter float64 // Retry-After, seconds
	Reset      float64 // x-ratelimit-reset, seconds until the window resets
}

// HintsFromHeaders extracts backoff hints from provider response headers.
// Malformed values are dropped, never surfaced.
func HintsFromHeaders(h http.Header) Hints {
	var hints Hints
	if h == nil {
		return hints
	}
	if v := h.Get("Retry-After"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			hints.RetryAfter = f
		}
	}
	if v := h.Get("x-ratelimit-reset"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			hints.Reset = f
		}
	}
	return hints
}

// Backoff returns the sleep duration for a rate-limit rejection: the largest
// of the floor and any provided hints, plus jitter.
func Backoff(hints Hints) time.Duration {
	base := float64(FloorSeconds)
	if hints.RetryAfter > base {
		base = hints.RetryAfter
	}
	if hints.Reset > base {
		base = hints.Reset
	}
	jitter := JitterMinSeconds + rand.Float64()*(JitterMaxSeconds-JitterMinSeconds)
	return time.Duration((base + jitter) * float64(time.Second))
}
