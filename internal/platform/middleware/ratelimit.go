package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// Skip exempts matching requests, e.g. health checks from a load balancer.
	Skip func(c echo.Context) bool
}

// DefaultRateLimitConfig allows 100 req/s per client with bursts of 200.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// RateLimit throttles each client address with its own token bucket. A
// throttled request gets a 429 with a Retry-After header and a "throttled"
// OperationOutcome; the handler is not called.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RequestsPerSecond),
		Burst:     cfg.BurstSize,
		ExpiresIn: 3 * time.Minute,
	})
	retryAfter := strconv.Itoa(retryAfterSeconds(cfg.RequestsPerSecond))
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	skipper := echomw.DefaultSkipper
	if cfg.Skip != nil {
		skipper = cfg.Skip
	}

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, client string, _ error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			body, _ := json.Marshal(fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeThrottled,
				"Too many requests from "+client+", retry after "+retryAfter+"s"))
			return c.Blob(http.StatusTooManyRequests, fhir.MIMEFHIRJSON, body)
		},
	})
}

// retryAfterSeconds is the wait for one token to refill, at least a second.
func retryAfterSeconds(rps float64) int {
	if rps <= 0 {
		return 1
	}
	s := int(math.Ceil(1 / rps))
	if s < 1 {
		s = 1
	}
	return s
}
