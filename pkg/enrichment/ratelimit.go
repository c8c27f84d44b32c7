package enrichment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between requests to one provider.
// Each provider owns its own limiter.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter allowing one request per interval. A
// non-positive interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may be issued or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	return errors.WithStack(l.limiter.Wait(ctx))
}
