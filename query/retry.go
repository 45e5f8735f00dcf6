package query

import (
	"context"
	"log"
	"time"

	"github.com/joostvdm/kennisbot/models"
)

const maxAttempts = 3

// Vars so tests can shrink the delays.
var (
	retryBackoff = 2 * time.Second
	maxBackoff   = 10 * time.Second
)

// withRetry runs fn up to maxAttempts times, sleeping between attempts with
// an exponential backoff. Only errors tagged transient are retried, anything
// else fails immediately.
func withRetry(ctx context.Context, logger *log.Logger, op string, fn func() error) error {
	backoff := retryBackoff

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !models.IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		logger.Printf("WARNING: %s failed (attempt %d/%d), retrying in %s: %v", op, attempt, maxAttempts, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}
