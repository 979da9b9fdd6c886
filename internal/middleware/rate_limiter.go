package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// DefaultSendRate is the sustained number of requests per second allowed per client.
const DefaultSendRate = 5

// RateLimiter limits requests per client IP to perSecond, with a burst of the
// same size (at least one).
// A non-positive rate uses DefaultSendRate.
func RateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = DefaultSendRate
	}
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(perSecond),
			Burst: max(1, int(perSecond)),
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			FromContext(c.Request().Context()).Warn("Rate limit exceeded", "client", identifier)
			return c.String(http.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
