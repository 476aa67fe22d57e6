package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Defaults applied when a call site does not override them.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Decision is the outcome of one budget check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole number of seconds until the window resets,
// never less than one.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter checks per-caller budgets against a CounterStore.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewLimiter creates a Limiter. Non-positive limit or window fall back to the
// package defaults.
func NewLimiter(store CounterStore, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, limit: limit, window: window, logger: logger}
}

// Limit returns the default request budget.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the default window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one request for key under the default budget.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	return l.AllowN(ctx, key, l.limit, l.window)
}

// AllowN records one request for key under a budget of limit requests per
// window. A counter store failure is logged and the request is allowed; the
// budget protects capacity and must not turn a cache outage into an API
// outage.
func (l *Limiter) AllowN(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		limit = l.limit
	}
	if window <= 0 {
		window = l.window
	}

	// Budgets with a non-default window count separately so that a route
	// override never shares or resets the default counter.
	if window != l.window {
		key = key + "@" + window.String()
	}

	count, start, err := l.store.Increment(ctx, key, window)
	if err != nil {
		l.logger.Error("rate limit store unavailable, allowing request",
			"key", key,
			"error", err,
		)
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: time.Now().Add(window)}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   start.Add(window),
	}
}
