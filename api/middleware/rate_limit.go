package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// BurstLimiter is an in-process token bucket per client IP. It only smooths
// bursts against the magic-link endpoints of one instance; the shared
// sliding-window limit lives in the ratelimit package.
type BurstLimiter struct {
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func NewBurstLimiter(r rate.Limit, burst int, ttl time.Duration) *BurstLimiter {
	return &BurstLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *BurstLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := l.getLimiter(c.RealIP())
			if !limiter.AllowN(l.now(), 1) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func (l *BurstLimiter) retryAfterSeconds() int {
	if l.rate <= 0 {
		return 1
	}
	seconds := int(math.Ceil(1 / float64(l.rate)))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (l *BurstLimiter) getLimiter(ip string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	if limiter, ok := l.limiters[ip]; ok {
		l.lastSeen[ip] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	l.lastSeen[ip] = now
	l.cleanup(now)
	return limiter
}

func (l *BurstLimiter) cleanup(now time.Time) {
	if l.ttl == 0 {
		return
	}
	cutoff := now.Add(-l.ttl)
	for ip, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, ip)
			delete(l.limiters, ip)
		}
	}
}
