package api

import (
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// limiterTTL is how long an idle source keeps its limiter before the
// entry is dropped.
const limiterTTL = time.Minute

// RateGate throttles the public webhook endpoint per source IP. A
// non-positive limit disables throttling.
type RateGate struct {
	limit    rate.Limit
	burst    int
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateGate returns a gate allowing limit requests per second with the
// given burst per source.
func NewRateGate(limit float64, burst int) *RateGate {
	if limit <= 0 {
		return &RateGate{}
	}
	if burst <= 0 {
		burst = 1
	}
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterTTL),
	)
	go cache.Start()
	return &RateGate{
		limit:    rate.Limit(limit),
		burst:    burst,
		limiters: cache,
	}
}

// Enabled reports whether throttling is configured.
func (g *RateGate) Enabled() bool {
	return g != nil && g.limiters != nil
}

// Allow reports whether the source may proceed.
func (g *RateGate) Allow(source string) bool {
	if !g.Enabled() {
		return true
	}
	item, _ := g.limiters.GetOrSet(source, rate.NewLimiter(g.limit, g.burst))
	return item.Value().Allow()
}

// Middleware rejects over-limit requests with 429 before any parsing or
// log mutation happens.
func (g *RateGate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !g.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, ackResponse{Error: "rate limited"})
			}
			return next(c)
		}
	}
}
