package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes an exponential backoff with bounded jitter. The delay for
// attempt n (zero-based) is Base * 2^n plus up to JitterFraction of that
// delay, capped at Max.
type Policy struct {
	Base           time.Duration
	Max            time.Duration
	JitterFraction float64
}

// DatabasePolicy is used when retrying SQLITE_BUSY errors.
var DatabasePolicy = Policy{
	Base:           50 * time.Millisecond,
	Max:            2 * time.Second,
	JitterFraction: 0.25,
}

// Delay returns the wait before retrying after the given attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := p.Base * time.Duration(1<<attempt)
	if p.JitterFraction > 0 {
		maxJitter := int64(float64(delay) * p.JitterFraction)
		if maxJitter > 0 {
			delay += time.Duration(rand.Int63n(maxJitter)) //nolint:gosec
		}
	}

	if p.Max > 0 && (delay > p.Max || delay < 0) {
		delay = p.Max
	}
	return delay
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn until it succeeds, shouldRetry reports false, or maxRetries
// retries have been used. The last error is returned.
func Retry(ctx context.Context, p Policy, maxRetries int, shouldRetry func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt == maxRetries {
			return err
		}
		if sleepErr := Sleep(ctx, p.Delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}
