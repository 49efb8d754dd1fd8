package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Run() error   { j.runs++; return j.err }
func (j *fakeJob) Name() string { return j.name }

func TestSchedulerRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "test_job"}

	err := s.RunNow(job)
	require.NoError(t, err)
	assert.Equal(t, 1, job.runs)

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "test_job", statuses[0].Name)
	assert.Equal(t, int64(1), statuses[0].Runs)
	assert.Equal(t, int64(0), statuses[0].Failures)
	assert.NotNil(t, statuses[0].LastRun)
}

func TestSchedulerRunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "registered_job"}

	require.NoError(t, s.AddJob("@every 1h", job))

	err := s.RunByName("registered_job")
	require.NoError(t, err)
	assert.Equal(t, 1, job.runs)

	err = s.RunByName("missing_job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "bad_schedule_job"}

	err := s.AddJob("not a schedule", job)
	require.Error(t, err)
	assert.Empty(t, s.Statuses())
}

func TestSchedulerRecordsFailures(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "flaky_job", err: errors.New("boom")}

	require.Error(t, s.RunNow(job))
	require.Error(t, s.RunNow(job))

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, int64(2), statuses[0].Runs)
	assert.Equal(t, int64(2), statuses[0].Failures)
	assert.Equal(t, "boom", statuses[0].LastError)

	// A success clears the last error but keeps the failure count
	job.err = nil
	require.NoError(t, s.RunNow(job))

	statuses = s.Statuses()
	assert.Equal(t, int64(3), statuses[0].Runs)
	assert.Equal(t, int64(2), statuses[0].Failures)
	assert.Empty(t, statuses[0].LastError)
}

func TestSchedulerStatusOrder(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1h", &fakeJob{name: "first"}))
	require.NoError(t, s.AddJob("@every 2h", &fakeJob{name: "second"}))
	require.NoError(t, s.AddJob("@every 3h", &fakeJob{name: "third"}))

	statuses := s.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, "first", statuses[0].Name)
	assert.Equal(t, "second", statuses[1].Name)
	assert.Equal(t, "third", statuses[2].Name)
	assert.Equal(t, "@every 2h", statuses[1].Schedule)
}

func TestSchedulerStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &fakeJob{name: "idle"}))

	s.Start()
	s.Stop()
}
