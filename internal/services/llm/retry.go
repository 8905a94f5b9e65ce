package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// retryConfig controls the shared retry loop for provider calls
type retryConfig struct {
	maxRetries int
	backoff    time.Duration
}

// withRetries runs call until it succeeds, returns a non-retryable error, or
// the attempt budget is spent. Backoff doubles between attempts and the loop
// honors context cancellation while waiting.
func withRetries(ctx context.Context, logger arbor.ILogger, provider string, cfg retryConfig, call func() error) error {
	backoff := cfg.backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn().
				Str("provider", provider).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Retrying LLM call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%s call failed after %d attempts: %w", provider, cfg.maxRetries+1, lastErr)
}

// isRetryable matches transient failures: rate limits, quota exhaustion,
// overload and server errors. Auth and validation failures are permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "resource_exhausted", "quota",
		"overloaded", "529", "500", "502", "503",
		"timeout", "deadline exceeded", "connection reset", "connection refused",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
