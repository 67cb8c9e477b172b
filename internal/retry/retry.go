// Package retry runs an operation under a bounded retry policy.
//
// The policy separates the three decisions a retry loop makes: how many
// attempts, how long to wait between them, and which errors are worth
// another attempt. Backoff schedules come from cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is matched by errors.Is on every ExhaustedError.
var ErrExhausted = errors.New("retries exhausted")

// ErrInvalidMaxAttempts is returned when MaxAttempts is not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d retries: %v", e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last attempt's error.
func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Err} }

// BackoffFactory returns a fresh schedule for one Do call.
type BackoffFactory func() backoff.BackOff

// Constant waits the same interval before every retry.
func Constant(interval time.Duration) BackoffFactory {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(interval)
	}
}

// Exponential grows the wait by multiplier up to maxInterval; jitter is the randomization factor in [0,1).
func Exponential(initial, maxInterval time.Duration, multiplier, jitter float64) BackoffFactory {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxInterval
		b.Multiplier = multiplier
		b.RandomizationFactor = jitter
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFactory
	// Retryable decides whether an error earns another attempt. Nil retries everything.
	Retryable func(error) bool
	// Notify is called before each wait with the failed attempt number (1-based).
	Notify func(err error, attempt int, wait time.Duration)

	timer backoff.Timer
}

// WithTimer overrides the wait timer. Tests use it to observe waits without sleeping.
func (p Policy) WithTimer(t backoff.Timer) Policy {
	p.timer = t
	return p
}

// Do calls op until it succeeds, returns a non-retryable error, the context ends,
// or MaxAttempts calls have failed. There is no wait after the final attempt.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var (
		attempts  int
		permanent bool
	)

	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.Notify != nil {
		notify = func(err error, wait time.Duration) {
			p.Notify(err, attempts, wait)
		}
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Backoff != nil {
		b = p.Backoff()
	}
	bctx := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	err := backoff.RetryNotifyWithTimer(operation, bctx, notify, p.timer)
	switch {
	case err == nil:
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("retry aborted after %d attempts: %w", attempts, ctx.Err())
	default:
		return &ExhaustedError{Attempts: attempts, Err: err}
	}
}
