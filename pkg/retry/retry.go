// Package retry 提供带超时与退避的有界重试原语
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultBackoff 默认退避基数，第 n 次失败后等待 n*DefaultBackoff
const DefaultBackoff = 250 * time.Millisecond

// Config 重试配置
type Config struct {
	// MaxAttempts 最大尝试次数（含首次调用）
	MaxAttempts int
	// AttemptTimeout 单次尝试超时
	AttemptTimeout time.Duration
	// Backoff 退避基数，0 时使用 DefaultBackoff
	Backoff time.Duration
	// Retryable 错误分类函数，nil 时使用 IsRetryable
	Retryable func(error) bool
}

// ExhaustedError 尝试耗尽后的标记错误，保留最后一次错误
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Do 在配置约束下执行 op，返回首个成功结果。
// 超时或可重试错误按 attempt*backoff 线性退避后重试；
// 不可重试错误立即返回；尝试耗尽返回 ExhaustedError。
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		}

		result, err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		// 父 context 结束时不再重试，结果直接丢弃
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		timedOut := errors.Is(err, context.DeadlineExceeded)
		if !timedOut && !retryable(err) {
			return zero, err
		}

		if attempt < attempts {
			select {
			case <-time.After(time.Duration(attempt) * backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, LastErr: lastErr}
}

// noRetryMarkers 命中即立即失败的标记。
// embedder 冷启动时重试只会反复撞上同一个 503，故快速失败。
var noRetryMarkers = []string{
	"cold start",
}

// retryMarkers 命中即允许重试的瞬时错误标记
var retryMarkers = []string{
	"timeout",
	"timed out",
	"early drop",
	"earlydrop",
	"shutdown",
	"connection reset",
	"econnreset",
	"socket hang up",
	"503",
	"504",
	"service unavailable",
	"bad gateway",
}

// IsRetryable 基于子串策略表判断错误是否可重试。
// 策略表是固定契约：冷启动标记优先于一切重试标记。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	for _, marker := range noRetryMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}

	if strings.Contains(msg, "edge function") && strings.Contains(msg, "failed") {
		return true
	}

	for _, marker := range retryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsExhausted 检查错误是否为尝试耗尽
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
