package workflow

import (
	"context"
	"math"
	"strings"
	"time"
)

// RetryPolicy configures Retry's exponential backoff: N attempts, an
// initial delay, a backoff factor, and a cap.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryPolicy is the retry policy used around the memorize
// pipeline's upstream calls: 3 attempts, 250ms initial delay, 4s cap.
// Which failures Retry repeats is decided from the error message
// (isRetryableMsg), not from the memerr Kind.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  250 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      4 * time.Second,
	}
}

// Retry calls fn up to policy.MaxAttempts times, backing off
// exponentially between retryable failures. fn's error is retried only
// if isRetryableMsg reports true for it; a non-retryable error returns
// immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryableMsg(lastErr.Error()) || attempt == policy.MaxAttempts-1 {
			return lastErr
		}
		if err := sleepWithBackoff(ctx, policy, attempt); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepWithBackoff(ctx context.Context, policy RetryPolicy, attempt int) error {
	delay := calculateBackoff(policy, attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func calculateBackoff(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.BackoffFactor, float64(attempt))
	if time.Duration(delay) > policy.MaxDelay {
		return policy.MaxDelay
	}
	return time.Duration(delay)
}

// isRetryableMsg checks whether an error message indicates a transient
// condition worth retrying.
func isRetryableMsg(msg string) bool {
	lower := strings.ToLower(msg)
	patterns := []string{
		"timeout", "rate_limit", "rate limit", "too many requests",
		"429", "500", "502", "503", "504",
		"connection reset", "connection refused", "eof",
		"overloaded", "capacity",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
