package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job binds a schedule to an agent prompt.
type Job struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Spec Spec   `json:"spec"`

	// Prompt is the user text submitted when the job fires.
	Prompt string `json:"prompt"`

	// SessionID is the session the prompt runs in; empty means an isolated
	// session derived from the job id.
	SessionID string `json:"session_id,omitempty"`

	// Target optionally names a route for the run.
	Target string `json:"target,omitempty"`

	// DeleteAfterRun removes the job after one firing; implied for "at".
	DeleteAfterRun bool `json:"delete_after_run,omitempty"`

	nextRun time.Time
}

// RunFunc executes one fired job.
type RunFunc func(ctx context.Context, job Job) error

// Service owns the timers for all registered jobs.
type Service struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	timers  map[string]*time.Timer
	run     RunFunc
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewService creates a scheduler that executes fired jobs through run.
func NewService(run RunFunc, logger zerolog.Logger) (*Service, error) {
	if run == nil {
		return nil, fmt.Errorf("run callback is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		jobs:   make(map[string]*Job),
		timers: make(map[string]*time.Timer),
		run:    run,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Add registers a job and arms its timer. The returned job carries its
// assigned id.
func (s *Service) Add(job Job) (Job, error) {
	if job.Name == "" {
		return Job{}, fmt.Errorf("job name is required")
	}
	if job.Prompt == "" {
		return Job{}, fmt.Errorf("job prompt is required")
	}
	next, err := NextRun(job.Spec, time.Now())
	if err != nil {
		return Job{}, fmt.Errorf("invalid schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return Job{}, fmt.Errorf("scheduler is stopped")
	}

	job.ID = uuid.New().String()
	if job.SessionID == "" {
		job.SessionID = "job:" + job.ID
	}
	if job.Spec.Kind == KindAt {
		job.DeleteAfterRun = true
	}
	job.nextRun = next

	s.jobs[job.ID] = &job
	s.armLocked(&job)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("name", job.Name).
		Time("next_run", next).
		Msg("Job scheduled")
	return job, nil
}

// Remove deletes a job and stops its timer.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	s.dropLocked(id)
	return nil
}

// Jobs lists registered jobs.
func (s *Service) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

// NextRunAt reports when a job will fire next.
func (s *Service) NextRunAt(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return job.nextRun, true
}

// Stop cancels all timers and any in-flight job runs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id := range s.timers {
		s.timers[id].Stop()
		delete(s.timers, id)
	}
	s.cancel()
}

func (s *Service) armLocked(job *Job) {
	delay := time.Until(job.nextRun)
	if delay < 0 {
		delay = 0
	}
	id := job.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

func (s *Service) dropLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	delete(s.jobs, id)
}

func (s *Service) fire(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	fired := *job

	if job.DeleteAfterRun {
		s.dropLocked(id)
	} else if next, err := NextRun(job.Spec, time.Now()); err == nil {
		job.nextRun = next
		s.armLocked(job)
	} else {
		s.logger.Error().Str("job_id", id).Err(err).Msg("Failed to reschedule job, dropping it")
		s.dropLocked(id)
	}
	s.mu.Unlock()

	start := time.Now()
	if err := s.run(s.ctx, fired); err != nil {
		s.logger.Error().
			Str("job_id", id).
			Str("name", fired.Name).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Scheduled job failed")
		return
	}
	s.logger.Info().
		Str("job_id", id).
		Str("name", fired.Name).
		Dur("duration", time.Since(start)).
		Msg("Scheduled job completed")
}
