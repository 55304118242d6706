// Package retry provides the retry policy shared by the remote model clients.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry configuration for remote calls.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps a single backoff interval.
	MaxBackoff time.Duration
}

// DefaultConfig returns the retry defaults for model provider calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BackoffBase:       200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// TransientError marks an error that may succeed on retry.
type TransientError struct {
	err error
	// RetryAfter is the server-requested delay, zero if none was given.
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{err: err}
}

// TransientAfter wraps err as retryable after at least d.
func TransientAfter(err error, d time.Duration) error {
	return &TransientError{err: err, RetryAfter: d}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Do runs op until it succeeds, returns a non-transient error, the retry
// budget is spent, or ctx is done. The last error from op is returned.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if cfg.BackoffBase > 0 {
		b.InitialInterval = cfg.BackoffBase
	}
	if cfg.BackoffMultiplier > 0 {
		b.Multiplier = cfg.BackoffMultiplier
	}
	if cfg.MaxBackoff > 0 {
		b.MaxInterval = cfg.MaxBackoff
	}
	b.MaxElapsedTime = 0

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delays := &retryAfter{BackOff: b}
	policy := backoff.WithContext(backoff.WithMaxRetries(delays, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		var transient *TransientError
		if errors.As(err, &transient) && transient.RetryAfter > 0 {
			delays.pending = transient.RetryAfter
		}
		return err
	}, policy)
}

// retryAfter lets a server-provided Retry-After override the next interval.
type retryAfter struct {
	backoff.BackOff
	pending time.Duration
}

func (r *retryAfter) NextBackOff() time.Duration {
	next := r.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if r.pending > 0 {
		next, r.pending = r.pending, 0
	}
	return next
}
