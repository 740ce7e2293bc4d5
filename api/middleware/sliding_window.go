package middleware

import (
	"net/http"
	"strconv"

	"radportal/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

// SlidingWindow enforces limiter per client IP on state-changing requests.
// Safe methods pass through uncounted so they can reach the handler's own
// method check.
func SlidingWindow(limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil || isSafeMethod(c.Request().Method) {
				return next(c)
			}

			decision := limiter.Check(c.Request().Context(), c.RealIP())
			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Reset.IsZero() {
				header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
			}

			if !decision.Allowed {
				header.Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"message":    "Too many requests. Please try again later.",
					"retryAfter": decision.RetryAfter,
				})
			}
			return next(c)
		}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
