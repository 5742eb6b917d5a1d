package router

import "golang.org/x/time/rate"

// NewRateLimiter returns a Limiter bounding callParallel dispatch to
// ratePerSecond calls per second with burst headroom, so a single batch of
// tool calls cannot starve the sandbox's container pool.
func NewRateLimiter(ratePerSecond float64, burst int) Limiter {
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}
