package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"placement-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"read: connection reset by peer", true},
		{"rpc error: code = PermissionDenied", false},
		{"invalid gateway address", false},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.err)))
		})
	}
}

func TestBackoff(t *testing.T) {
	retry := &RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, backoff(retry, 0))
	assert.Equal(t, 2*time.Second, backoff(retry, 1))
	assert.Equal(t, 4*time.Second, backoff(retry, 2))
	assert.Equal(t, 5*time.Second, backoff(retry, 3))
}

func TestConnect_RetriesTransientFailures(t *testing.T) {
	cfg := &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}
	want := &Client{}
	calls := 0

	got, err := connect(context.Background(), cfg, func() (*Client, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return want, nil
	}, logger.NewTestLogger(t))

	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 3, calls)
}

func TestConnect_StopsOnPermanentFailure(t *testing.T) {
	cfg := &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}
	calls := 0

	_, err := connect(context.Background(), cfg, func() (*Client, error) {
		calls++
		return nil, errors.New("permission denied")
	}, logger.NewTestLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 1, calls)
}

func TestConnect_GivesUpAfterMaxRetries(t *testing.T) {
	cfg := &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}
	calls := 0

	_, err := connect(context.Background(), cfg, func() (*Client, error) {
		calls++
		return nil, errors.New("unavailable")
	}, logger.NewNoOpLogger())

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
