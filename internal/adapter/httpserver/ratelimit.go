package httpserver

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/planverify/internal/platform/errors"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter is a coarse per-IP token bucket in front of the API. It protects the process
// itself; the engine's sliding-window limits are the authoritative per-action budgets.
// Bucket refill runs on echo's own clock; the advertised retry time comes from clock.
func newRateLimiter(ratePerSecond float64, burst int, clock clockwork.Clock) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := time.Duration(float64(time.Second) / ratePerSecond)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperrors.RateLimitedError("rate limit exceeded", clock.Now().Add(retryAfter))
		},
	})
}
