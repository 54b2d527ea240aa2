package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func failingCall(ctx context.Context) error { return errBackend }

func okCall(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, failingCall)
		assert.ErrorIs(t, err, errBackend)
	}

	assert.True(t, cb.IsOpen())

	// Open circuit fails fast without calling through.
	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	require.Error(t, cb.Execute(ctx, failingCall))
	require.NoError(t, cb.Execute(ctx, okCall))
	require.Error(t, cb.Execute(ctx, failingCall))
	require.Error(t, cb.Execute(ctx, failingCall))

	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(2),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	require.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)

	// Two successes in half-open close the circuit.
	require.NoError(t, cb.Execute(ctx, okCall))
	require.NoError(t, cb.Execute(ctx, okCall))
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(ctx, failingCall))
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	type transition struct{ from, to State }
	var transitions []transition

	cb := New("test",
		WithFailureThreshold(1),
		WithOnStateChange(func(name string, from, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, transition{from, to})
		}),
	)

	require.Error(t, cb.Execute(context.Background(), failingCall))
	require.Equal(t, []transition{{StateClosed, StateOpen}}, transitions)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignorable := errors.New("not a real failure")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, ignorable) }),
	)
	ctx := context.Background()

	// Filtered errors pass through without tripping the breaker.
	err := cb.Execute(ctx, func(ctx context.Context) error { return ignorable })
	assert.ErrorIs(t, err, ignorable)
	assert.True(t, cb.IsClosed())

	require.Error(t, cb.Execute(ctx, failingCall))
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	require.True(t, cb.IsOpen())

	var fallbackErr error
	err := cb.ExecuteWithFallback(ctx, okCall, func(cause error) error {
		fallbackErr = cause
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, fallbackErr, ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	require.Error(t, cb.Execute(context.Background(), failingCall))
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}
