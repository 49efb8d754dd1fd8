// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the last observed outcome of a registered job
type JobStatus struct {
	Name           string     `json:"name"`
	Schedule       string     `json:"schedule"`
	Runs           int64      `json:"runs"`
	Failures       int64      `json:"failures"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	LastDurationMS int64      `json:"last_duration_ms"`
	LastError      string     `json:"last_error,omitempty"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	bus  *events.Bus

	mu       sync.Mutex
	jobs     map[string]Job
	statuses map[string]*JobStatus
	order    []string
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		log:      log.With().Str("component", "scheduler").Logger(),
		jobs:     make(map[string]Job),
		statuses: make(map[string]*JobStatus),
	}
}

// SetEventBus wires job lifecycle events (job_started, job_completed,
// job_failed) onto the bus. Call before Start.
func (s *Scheduler) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 9 * * MON-FRI"    - 9 AM weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return err
	}

	s.track(schedule, job)

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.run(job)
}

// RunByName triggers a registered job by name
func (s *Scheduler) RunByName(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.RunNow(job)
}

// Statuses returns every registered job's status in registration order
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.statuses[name])
	}
	return out
}

func (s *Scheduler) execute(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := s.run(job); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	}
}

// run executes the job, records the outcome and emits lifecycle events.
func (s *Scheduler) run(job Job) error {
	s.emit(events.JobStarted, job.Name(), 0, nil)

	start := time.Now()
	err := job.Run()
	s.record(job.Name(), start, err)

	if err != nil {
		s.emit(events.JobFailed, job.Name(), time.Since(start), err)
	} else {
		s.emit(events.JobCompleted, job.Name(), time.Since(start), nil)
	}
	return err
}

func (s *Scheduler) emit(eventType events.EventType, jobName string, duration time.Duration, err error) {
	if s.bus == nil {
		return
	}

	data := map[string]interface{}{"job_name": jobName}
	if duration > 0 {
		data["duration_seconds"] = duration.Seconds()
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.bus.Emit(eventType, "scheduler", data)
}

// track registers a job for status reporting and manual triggering. A job
// added under several schedules keeps one status entry; the last schedule
// wins.
func (s *Scheduler) track(schedule string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.statuses[name]; !ok {
		s.statuses[name] = &JobStatus{Name: name}
		s.order = append(s.order, name)
	}
	s.statuses[name].Schedule = schedule
	s.jobs[name] = job
}

func (s *Scheduler) record(name string, start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[name]
	if !ok {
		st = &JobStatus{Name: name}
		s.statuses[name] = st
		s.order = append(s.order, name)
	}

	finished := time.Now()
	st.Runs++
	st.LastRun = &finished
	st.LastDurationMS = finished.Sub(start).Milliseconds()
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
}
