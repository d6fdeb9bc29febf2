// Package retry provides a generic retry helper with a globally configurable
// linear backoff, used by the worker pools around each per-entry attempt. Do
// retries every error it sees; it does not consult an error's kind.
package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// backoffBaseMS is the base backoff, in milliseconds, used between attempts.
// The wait before attempt N (0-indexed) is backoffBaseMS * N.
var backoffBaseMS int64 = 100

// SetBackoffBaseMS overrides the base backoff used by Do. It is safe to call
// concurrently with in-flight retries; it takes effect on their next sleep.
func SetBackoffBaseMS(ms int64) {
	atomic.StoreInt64(&backoffBaseMS, ms)
}

// BackoffBaseMS returns the currently configured base backoff.
func BackoffBaseMS() int64 {
	return atomic.LoadInt64(&backoffBaseMS)
}

// Do runs op up to maxAttempts times, sleeping base*attempt milliseconds
// between attempts (attempt is 1-indexed for the purpose of the wait). It
// returns the first successful result, or the last error if every attempt
// failed. Do returns ctx.Err() immediately if ctx is cancelled between
// attempts.
func Do[T any](ctx context.Context, maxAttempts int, op func(attempt int) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op(attempt)
		if err == nil {
			return v, nil
		}

		lastErr = err

		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(BackoffBaseMS()*int64(attempt)) * time.Millisecond

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("retry: operation failed with no error reported")
	}

	return zero, lastErr
}
