package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(0),
	)
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	base := errors.New("bad request")
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(base)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, base, err)
}

func TestDo_UnclassifiedErrorIsNotRetried(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("plain")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttemptsAndUnwraps(t *testing.T) {
	calls := 0
	base := errors.New("still down")
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(base)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, base, err)
}

func TestDo_ContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := fastRetrier(10).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("transient"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfOverridesClassification(t *testing.T) {
	marker := errors.New("marker")
	calls := 0

	err := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, marker) }),
	).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return marker
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	_ = New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}),
	).Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("transient"))
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	value, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestClassificationHelpers(t *testing.T) {
	base := errors.New("base")

	assert.True(t, IsRetryable(Retryable(base)))
	assert.False(t, IsRetryable(Permanent(base)))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	// Wrapping survives fmt-style chains.
	wrapped := Retryable(base)
	assert.ErrorIs(t, wrapped, base)
}
