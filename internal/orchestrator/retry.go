package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"claridoc/internal/logging"
)

// ErrRateLimited is returned after every attempt was rejected with a rate limit.
var ErrRateLimited = errors.New("model is rate limited, try again shortly")

// RetryPolicy retries rate-limited model calls with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// Backoff returns the wait after failed attempt n (1-based).
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy makes 3 attempts, waiting 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Second),
		Sleep:       SleepContext,
	}
}

// ExponentialBackoff waits unit * 2^attempt after attempt.
func ExponentialBackoff(unit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return unit * time.Duration(math.Pow(2, float64(attempt)))
	}
}

// SleepContext sleeps for d unless ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails with a non rate-limit error, or runs out
// of attempts. Exhausted attempts yield an error wrapping ErrRateLimited and the
// last rate-limit error.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRateLimit(err) {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		logging.APIWarn("%s rate limited (attempt %d/%d), retrying in %v", op, attempt, p.MaxAttempts, wait)
		if err := p.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	logging.APIError("%s rate limited after %d attempts", op, p.MaxAttempts)
	return fmt.Errorf("%w: %w", ErrRateLimited, lastErr)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = d.Backoff
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	return p
}

// IsRateLimit reports whether err is a 429 from the model service.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}
