package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name     string
	schedule string
	err      error
	runs     int
}

func (j *stubJob) Name() string              { return j.name }
func (j *stubJob) Schedule() string          { return j.schedule }
func (j *stubJob) Run(context.Context) error { j.runs++; return j.err }

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob(&stubJob{name: "daily", schedule: "15 6 * * *"}))
	assert.Error(t, s.AddJob(&stubJob{name: "daily", schedule: "15 6 * * *"}))
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob(&stubJob{name: "bad", schedule: "not a cron"}))
}

func TestRunJobUnknown(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.RunJob("missing"))
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := New(zerolog.Nop())
	s.retryDelay = 0

	job := &stubJob{name: "daily", schedule: "15 6 * * *"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	stats := s.Stats()["daily"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastRun)
}

func TestRunJobRetriesUntilExhausted(t *testing.T) {
	s := New(zerolog.Nop())
	s.retryDelay = 0

	job := &stubJob{name: "flaky", schedule: "15 6 * * *", err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, s.maxRetries+1, job.runs)
	stats := s.Stats()["flaky"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.Zero(t, stats.SuccessCount)
}

func TestJobHistoryTrimsToHundred(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{Success: true})
	}
	assert.Len(t, h.Results, 100)
}
