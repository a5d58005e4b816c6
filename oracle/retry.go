package oracle

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// RetryPolicy defines retry behavior for transient Oracle failures.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration
}

type attemptFunc[T any] func(ctx context.Context, attempt int) (T, error)

func withRetry[T any](ctx context.Context, policy RetryPolicy, operation string, fn attemptFunc[T]) (T, int, error) {
	normalized := normalizeRetryPolicy(policy)
	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= normalized.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		out, err := fn(ctx, attempt)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		if attempt == normalized.MaxAttempts || !isRetryableError(err) {
			return zero, attempt, err
		}
		tool.ActiveObserver().ObserveRetry(tool.UpstreamRetryObservation{
			Operation: operation,
			Attempt:   attempt,
			ErrorCode: tool.ToolErrorCode(err),
		})

		wait := retryBackoffDuration(normalized, attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, normalized.MaxAttempts, lastErr
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	out := policy
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.Backoff < 0 {
		out.Backoff = 0
	}
	return out
}

func retryBackoffDuration(policy RetryPolicy, attempt int) time.Duration {
	if policy.Backoff <= 0 || attempt <= 0 {
		return 0
	}
	return policy.Backoff * time.Duration(attempt)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if toolErr, ok := tool.ToolErrorFrom(err); ok {
		return toolErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
