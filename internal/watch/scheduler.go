package watch

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler fires a callback on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobID     string
}

// NewScheduler registers fire every interval. Runs that would overlap are skipped.
func NewScheduler(interval time.Duration, fire func()) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fire),
		gocron.WithName("periodic-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}
	return &Scheduler{scheduler: s, jobID: job.ID().String()}, nil
}

// JobID returns the id of the periodic job.
func (s *Scheduler) JobID() string { return s.jobID }

// Start begins firing.
func (s *Scheduler) Start() { s.scheduler.Start() }

// Stop shuts the scheduler down and waits for a running callback.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
