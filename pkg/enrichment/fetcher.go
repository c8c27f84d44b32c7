package enrichment

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/backoff"
	"github.com/shishobooks/folio/pkg/version"
)

const maxResponseSize = 8 << 20

// StatusError is returned for a response that isn't 2xx once retries are
// used up, or right away for statuses that aren't worth retrying.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

type FetcherOptions struct {
	Client     *http.Client
	Limiter    *RateLimiter
	Policy     backoff.Policy
	MaxRetries int
}

// Fetcher issues rate limited GET requests for one provider, retrying 429s
// and server errors with exponential backoff.
type Fetcher struct {
	client     *http.Client
	limiter    *RateLimiter
	policy     backoff.Policy
	maxRetries int
	userAgent  string
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	return &Fetcher{
		client:     client,
		limiter:    limiter,
		policy:     opts.Policy,
		maxRetries: opts.MaxRetries,
		userAgent:  "Folio/" + version.Version,
	}
}

// Get returns the body of a 2xx response to rawURL. Every attempt, retries
// included, waits for a rate limit token first.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	log := logger.FromContext(ctx)
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.WithStack(err)
		}

		body, retryAfter, err := f.do(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}

		var serr *StatusError
		if errors.As(err, &serr) && !retryableStatus(serr.StatusCode) {
			return nil, err
		}
		lastErr = err
		if attempt == f.maxRetries {
			break
		}

		delay := f.retryDelay(attempt, retryAfter)
		log.Warn("retrying provider request", logger.Data{
			"url":     rawURL,
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		if err := backoff.Sleep(ctx, delay); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return nil, errors.Wrapf(lastErr, "request failed after %d attempts", f.maxRetries+1)
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return body, 0, nil
}

// retryDelay prefers the server's Retry-After, capped at the policy's max,
// and adds jitter so concurrent clients don't retry in lockstep.
func (f *Fetcher) retryDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter <= 0 {
		return f.policy.Delay(attempt)
	}
	delay := retryAfter
	if f.policy.Max > 0 && delay > f.policy.Max {
		delay = f.policy.Max
	}
	if f.policy.JitterFraction > 0 {
		if maxJitter := int64(float64(delay) * f.policy.JitterFraction); maxJitter > 0 {
			delay += time.Duration(rand.Int63n(maxJitter)) //nolint:gosec
		}
	}
	return delay
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// parseRetryAfter accepts both forms of the header: a number of seconds or
// an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
