package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{MaxAttempts: 3}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientError(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset by peer")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryableFailsFast(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid argument")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsExhausted(err))
}

func TestDoColdStartNeverRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{
		MaxAttempts: 5,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		// 冷启动标记同时带有可重试的 503 标记，冷启动必须优先
		return 0, errors.New("503 service unavailable: cold start in progress")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustion(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d: request timed out", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.True(t, IsExhausted(err))

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Contains(t, ex.LastErr.Error(), "attempt 3")
}

func TestDoAttemptTimeoutRetries(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{
		MaxAttempts:    2,
		AttemptTimeout: 20 * time.Millisecond,
		Backoff:        time.Millisecond,
	}, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 2, calls)
}

func TestDoParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Config{
		MaxAttempts: 5,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("request timed out")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("dial tcp: i/o timeout"), true},
		{errors.New("upstream returned 503"), true},
		{errors.New("bad gateway"), true},
		{errors.New("socket hang up"), true},
		{errors.New("worker shutdown in progress"), true},
		{errors.New("EarlyDrop triggered"), true},
		{errors.New("edge function invocation failed"), true},
		{errors.New("cold start: model loading"), false},
		{errors.New("invalid request payload"), false},
	}
	for _, tc := range cases {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}
