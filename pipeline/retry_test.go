package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	errTransient := errors.New("embedding service unavailable")

	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		wantErr      error
		wantAttempts int
	}{
		{name: "first try", maxAttempts: 3, failures: 0, wantAttempts: 1},
		{name: "eventual success", maxAttempts: 5, failures: 2, wantAttempts: 3},
		{name: "all attempts fail", maxAttempts: 3, failures: 10, wantErr: errTransient, wantAttempts: 3},
		{name: "single attempt", maxAttempts: 1, failures: 1, wantErr: errTransient, wantAttempts: 1},
		{name: "zero attempts", maxAttempts: 0, wantErr: ErrInvalidMaxAttempts, wantAttempts: 0},
		{name: "negative attempts", maxAttempts: -1, wantErr: ErrInvalidMaxAttempts, wantAttempts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), func() error {
				attempts++
				if attempts <= tt.failures {
					return errTransient
				}
				return nil
			}, tt.maxAttempts, time.Millisecond)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, 5*time.Millisecond)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop once the context is canceled")
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := RetryWithBackoff(ctx, func() error {
		return errors.New("error")
	}, 100, 50*time.Millisecond)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoff_DelayDoubles(t *testing.T) {
	var stamps []time.Time
	err := RetryWithBackoff(context.Background(), func() error {
		stamps = append(stamps, time.Now())
		if len(stamps) < 4 {
			return errors.New("error")
		}
		return nil
	}, 5, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, stamps, 4)

	// Waits of roughly 10ms, 20ms and 40ms.
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[3].Sub(stamps[2]), 40*time.Millisecond)
}
