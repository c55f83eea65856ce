package llms

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy implements §4.2's backoff: up to 3 attempts, exponential
// backoff with base 500ms and cap 8s, full jitter. A RateLimitError that
// carries a provider-suggested RetryAfter is honored in place of the
// computed backoff for that attempt.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultRetryPolicy is the policy every adapter uses unless overridden.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Base:        500 * time.Millisecond,
	Cap:         8 * time.Second,
}

// Do runs fn, retrying on retryable errors per the policy. fn is called at
// least once and at most MaxAttempts times in total; fn itself carries no
// retry logic.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt+1 >= p.MaxAttempts {
			return err
		}

		delay := p.backoff(attempt)
		if rl, ok := err.(*RateLimitError); ok && rl.RetryAfter > 0 {
			delay = rl.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff computes exponential backoff with full jitter: a uniform random
// value in [0, min(cap, base*2^attempt)).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	exp := time.Duration(math.Pow(2, float64(attempt))) * p.Base
	if exp > p.Cap {
		exp = p.Cap
	}
	if exp <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(exp)))
}
