package vision_agent

import (
	"context"
	"fmt"
	"log"
	"time"
)

const apiMaxRetries = 3

// apiRetryDelay 为第一次重试前的等待时长，之后按次数线性递增。
var apiRetryDelay = 2 * time.Second

// callWithRetry 仅在 retryable 判定为可重试时重试；上下文取消后立即返回。
func callWithRetry[T any](ctx context.Context, agentName string, action string, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= apiMaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Printf("[%s] retry succeeded: action=%s, attempt=%d", agentName, action, attempt)
			}
			return result, nil
		}

		lastErr = err
		log.Printf("[%s] call failed: action=%s, attempt=%d/%d, err=%v", agentName, action, attempt, apiMaxRetries, err)
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt < apiMaxRetries {
			backoff := time.Duration(attempt) * apiRetryDelay
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%s interrupted: %w", action, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", action, apiMaxRetries, lastErr)
}
