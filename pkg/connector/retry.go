package connector

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quarryhq/quarry/pkg/apperr"
)

// RetryReason classifies why a call is being retried, for the user-visible
// retry callback.
type RetryReason string

const (
	RetryReasonRateLimit  RetryReason = "rate_limit"
	RetryReasonServerErr  RetryReason = "server_error"
	RetryReasonTimeout    RetryReason = "timeout"
)

// RetryObserver is invoked once per retry attempt, before the backoff sleep.
type RetryObserver func(reason RetryReason, attempt, max int, wait time.Duration)

// RetryableError wraps an error with the retry reason and an optional
// vendor Retry-After duration that should be honored verbatim instead of
// the jittered backoff curve.
type RetryableError struct {
	Reason     RetryReason
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// ClassifyHTTPError turns an HTTP status code into a RetryableError, or nil
// if the status isn't retryable. retryAfterHeader is the raw header value
// (may be empty).
func ClassifyHTTPError(status int, retryAfterHeader string, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RetryableError{Reason: RetryReasonRateLimit, RetryAfter: parseRetryAfter(retryAfterHeader), Err: err}
	case status >= 500:
		return &RetryableError{Reason: RetryReasonServerErr, Err: err}
	default:
		return nil
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// WithRetry runs fn with jittered exponential backoff (mirroring
// worker.go's pollInterval jitter math) up to maxAttempts, honoring a
// vendor Retry-After when the error carries one, and reporting every retry
// through observer (which may be nil).
func WithRetry(ctx context.Context, maxAttempts int, observer RetryObserver, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // bounded by maxAttempts, not elapsed wall time

	attempt := 0
	var lastErr error

	for attempt < maxAttempts {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			if ctx.Err() != nil {
				return err
			}
			return apperr.New(apperr.KindTransient, false, err)
		}
		if attempt >= maxAttempts {
			break
		}

		wait := policy.NextBackOff()
		if retryable.RetryAfter > 0 {
			wait = retryable.RetryAfter
		}
		if observer != nil {
			observer(retryable.Reason, attempt, maxAttempts, wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return apperr.New(apperr.KindTransient, true, lastErr)
}
