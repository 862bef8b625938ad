package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Warner receives a retry warning line; internal/ui.Logger satisfies it.
type Warner interface {
	Warnf(format string, args ...interface{})
}

// WithRetry runs op up to retries+1 times, matching "Source
// error ... retried at most net.retry times with exponential backoff;
// then fatal." Each retry emits a "spurious network error (N tries
// remaining): <cause>" warning, the exact wording the reference
// implementation's test suite checks for.
func WithRetry(ctx context.Context, retries int, warn Warner, op func() error) error {
	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		remaining := retries - attempt
		if remaining <= 0 {
			break
		}
		if warn != nil {
			warn.Warnf("spurious network error (%d tries remaining): %v", remaining, lastErr)
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return fmt.Errorf("source error: %w", lastErr)
}
