package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by rebuild throttling and the
// observability endpoints.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter refills perSecond tokens each second and holds at most burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// NewIntervalLimiter admits burst events, then one per interval. A zero
// interval never limits.
func NewIntervalLimiter(interval time.Duration, burst int) *Limiter {
	if interval <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Every(interval), burst)}
}

func (l *Limiter) Allow(n int) bool {
	return l.bucket.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.bucket.WaitN(ctx, n)
}
