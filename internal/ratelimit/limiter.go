// Package ratelimit throttles request submission with a sliding window kept
// in an external counter store. When the store is missing or failing the
// limiter lets requests through: availability wins over strict enforcement.
package ratelimit

import (
	"context"
	"math"
	"time"

	"radportal/internal/metrics"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Hour
)

// Result is what a Store reports for one key.
type Result struct {
	Allowed   bool
	Count     int
	Remaining int
	Reset     time.Time
}

// Store keeps the sliding-window counters. Hit consumes an attempt, Peek
// does not.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
	Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

type Config struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	// RetryAfter is whole seconds until the window frees a slot; zero when allowed.
	RetryAfter int
}

type Status struct {
	Limit     int
	Used      int
	Remaining int
	Reset     time.Time
}

type Limiter struct {
	store  Store
	config Config
	logger logrus.FieldLogger
	now    func() time.Time
}

// New builds a limiter. A nil store yields a limiter that allows everything.
func New(store Store, config Config, logger logrus.FieldLogger) *Limiter {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Limiter{
		store:  store,
		config: config,
		logger: logger.WithField("component", "RateLimiter"),
		now:    time.Now,
	}
}

func (l *Limiter) Limit() int {
	return l.config.MaxAttempts
}

func (l *Limiter) key(identifier string) string {
	if l.config.Prefix == "" {
		return identifier
	}
	return l.config.Prefix + ":" + identifier
}

// Check consumes one attempt for identifier.
func (l *Limiter) Check(ctx context.Context, identifier string) Decision {
	now := l.now()
	if l.store == nil {
		metrics.RateLimitDecisions.WithLabelValues("unconfigured").Inc()
		return l.openDecision(now)
	}

	result, err := l.store.Hit(ctx, l.key(identifier), l.config.MaxAttempts, l.config.Window, now)
	if err != nil {
		l.logger.WithError(err).WithField("identifier", identifier).Error("rate limit check failed, allowing request")
		metrics.RateLimitDecisions.WithLabelValues("fail_open").Inc()
		return l.openDecision(now)
	}

	decision := Decision{
		Allowed:   result.Allowed,
		Limit:     l.config.MaxAttempts,
		Remaining: result.Remaining,
		Reset:     result.Reset,
	}
	if !result.Allowed {
		decision.RetryAfter = retryAfterSeconds(result.Reset, now)
		metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		l.logger.WithFields(logrus.Fields{
			"identifier":  identifier,
			"retry_after": decision.RetryAfter,
		}).Warn("rate limit exceeded")
		return decision
	}
	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return decision
}

// Status reports current usage without consuming an attempt. Failures yield
// a zeroed status.
func (l *Limiter) Status(ctx context.Context, identifier string) Status {
	now := l.now()
	empty := Status{Limit: l.config.MaxAttempts, Remaining: l.config.MaxAttempts, Reset: now}
	if l.store == nil {
		return empty
	}
	result, err := l.store.Peek(ctx, l.key(identifier), l.config.MaxAttempts, l.config.Window, now)
	if err != nil {
		l.logger.WithError(err).WithField("identifier", identifier).Error("rate limit status failed")
		return empty
	}
	return Status{
		Limit:     l.config.MaxAttempts,
		Used:      result.Count,
		Remaining: result.Remaining,
		Reset:     result.Reset,
	}
}

func (l *Limiter) openDecision(now time.Time) Decision {
	return Decision{
		Allowed:   true,
		Limit:     l.config.MaxAttempts,
		Remaining: l.config.MaxAttempts,
		Reset:     now.Add(l.config.Window),
	}
}

func retryAfterSeconds(reset time.Time, now time.Time) int {
	seconds := int(math.Ceil(reset.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
