package billing

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the first retry delay before jitter.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential delay before jitter.
	DefaultMaxDelay = 10 * time.Second

	// jitterFactor bounds the random fraction added to each computed delay.
	jitterFactor = 0.3

	// errPreviewLength bounds error text in retry logs and status messages.
	errPreviewLength = 200

	maxShiftAttempts = 32
)

// RetryOptions configures Execute. The zero value selects the defaults.
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry; each subsequent retry
	// doubles it up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay, before jitter is added.
	MaxDelay time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// exponentialPolicy computes min(base * 2^attempt, max) plus a jitter of
// uniform(0, jitterFactor) times the capped delay. It implements the
// backoff.BackOff interface.
type exponentialPolicy struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

// NextBackOff returns the delay before the next retry.
func (p *exponentialPolicy) NextBackOff() time.Duration {
	delay := p.max
	if p.attempt < maxShiftAttempts {
		delay = p.base << uint(p.attempt)
		if delay <= 0 || delay > p.max {
			delay = p.max
		}
	}
	p.attempt++

	jitter := time.Duration(rand.Float64() * jitterFactor * float64(delay))
	return delay + jitter
}

// Reset restarts the exponential ladder.
func (p *exponentialPolicy) Reset() {
	p.attempt = 0
}

// Execute runs op with bounded retries. Only failures whose ErrorKind is
// transient (rate limiting, connection failures, upstream API faults) are
// retried; any other failure is returned immediately with zero delay. When
// the platform supplied a Retry-After hint the server-requested delay takes
// precedence over the computed one. After the retry budget is exhausted the
// last error is returned to the caller.
func Execute[T any](ctx context.Context, op func() (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	policy := &exponentialPolicy{base: opts.BaseDelay, max: opts.MaxDelay}

	var lastErr error
	wrapped := func() (T, error) {
		res, err := op()
		if err == nil {
			return res, nil
		}
		lastErr = err

		kind := KindOf(err)
		if !Retryable(kind) {
			return res, backoff.Permanent(err)
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			return res, errors.Join(err, &backoff.RetryAfterError{Duration: apiErr.RetryAfter})
		}
		return res, err
	}

	attempt := 0
	result, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(opts.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			attempt++
			slog.Warn("retrying billing API call",
				"attempt", attempt,
				"max_retries", opts.MaxRetries,
				"delay", delay,
				"error", truncateMessage(err.Error(), errPreviewLength))
		}),
	)
	if err == nil {
		return result, nil
	}

	// Surface caller cancellation as-is; otherwise unwrap the retry
	// machinery so the caller sees the operation's own last error.
	if ctx.Err() != nil && errors.Is(err, context.Cause(ctx)) {
		return result, err
	}
	if lastErr != nil {
		return result, lastErr
	}
	return result, err
}

func truncateMessage(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit] + "..."
}
