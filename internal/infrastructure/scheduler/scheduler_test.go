package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counting job for tests" }

func (j *countingJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), s.Next(now))
	assert.Equal(t, "@every 15m0s", s.String())
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(3, 30, time.UTC)

	// Before today's fire time.
	now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC), s.Next(now))

	// After today's fire time rolls to tomorrow.
	now = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), s.Next(now))

	// Exactly at the fire time rolls to tomorrow too.
	now = time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), s.Next(now))
}

func TestScheduler_RegisterRejectsDuplicates(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "dup"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	err := s.Register(job, NewIntervalSchedule(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestScheduler_RegisterNilChecks(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "j"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "on_demand"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "on_demand")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "broken", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, result.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&countingJob{name: "idle"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "disabled"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.DisableJob("disabled"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}

func TestScheduler_ListJobs(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&countingJob{name: "b"}, NewDailySchedule(3, 0, time.UTC)))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	names := map[string]bool{}
	for _, info := range jobs {
		names[info.Name] = true
		assert.True(t, info.Enabled)
		assert.False(t, info.NextRun.IsZero())
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}
