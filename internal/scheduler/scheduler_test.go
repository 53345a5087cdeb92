package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // first N runs fail
	runs     int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.runs, 1)
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 0 */6 * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}), "duplicate name")

	// five fields is not a valid seconds-first expression
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "0 16 * * *"}))
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "sync", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("sync"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("sync"))
}

func TestRunNow_RetriesUntilSuccess(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Millisecond))
	job := &countingJob{name: "sync", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow("sync")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)

	stats := s.GetJobStats()["sync"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunNow_GivesUp(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	job := &countingJob{name: "sync", schedule: "@hourly", failures: 10}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow("sync")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "transient", result.Error)

	history, err := s.GetJobHistory("sync")
	require.NoError(t, err)
	require.Len(t, history.GetFailedResults(), 1)
	assert.Equal(t, 0.0, history.GetSuccessRate())

	_, err = s.RunNow("missing")
	assert.Error(t, err)
}

func TestStop_CancelsRetryWait(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	job := &countingJob{name: "sync", schedule: "@hourly", failures: 10}
	require.NoError(t, s.AddJob(job))
	s.Start()

	done := make(chan JobResult, 1)
	go func() {
		result, _ := s.RunNow("sync")
		done <- result
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case result := <-done:
		assert.False(t, result.Success)
		assert.Equal(t, 1, result.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{JobName: "sync", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, h.GetLatestResults(0))
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}

func TestJobHistory_StatsKeepsEarlierSuccess(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := &JobHistory{}
	h.AddResult(JobResult{StartTime: t0, Success: true})
	h.AddResult(JobResult{StartTime: t0.Add(6 * time.Hour), Success: false, Error: "hz down"})

	stats := h.Stats("catalog_sync", "@hourly")
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, t0.Add(6*time.Hour), *stats.LastRun)
	require.NotNil(t, stats.LastSuccess)
	assert.Equal(t, t0, *stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.Equal(t, "hz down", stats.LastError)

	empty := (&JobHistory{}).Stats("idle", "@hourly")
	assert.Nil(t, empty.LastRun)
	assert.Nil(t, empty.LastSuccess)
	assert.Zero(t, empty.SuccessRate)
}

func TestJobStats_NextRun(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "sync", schedule: "@hourly"}))

	stats, ok := s.JobStats("sync")
	require.True(t, ok)
	assert.Equal(t, "@hourly", stats.Schedule)
	assert.Nil(t, stats.NextRun, "not started")

	s.Start()
	defer s.Stop()

	stats, ok = s.JobStats("sync")
	require.True(t, ok)
	require.NotNil(t, stats.NextRun)
	assert.True(t, stats.NextRun.After(time.Now()))

	_, ok = s.JobStats("missing")
	assert.False(t, ok)
}
