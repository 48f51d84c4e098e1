package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrDisabled is returned by Start when no schedule is configured.
var ErrDisabled = errors.New("cover cleanup schedule is empty")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CleanupEnqueuer queues a cover cleanup run.
type CleanupEnqueuer interface {
	EnqueueCoverCleanup() error
}

// CoverCleanupScheduler periodically queues removal of unused cover files.
type CoverCleanupScheduler struct {
	schedule string
	enqueuer CleanupEnqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewCoverCleanupScheduler creates a scheduler for the given cron expression.
func NewCoverCleanupScheduler(schedule string, enqueuer CleanupEnqueuer) *CoverCleanupScheduler {
	return &CoverCleanupScheduler{
		schedule: schedule,
		enqueuer: enqueuer,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// ValidateSchedule checks a five-field cron expression or descriptor.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Describe returns a human readable description of a cron schedule.
func Describe(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "0 4 * * *":
		return "Daily at 04:00"
	case "0 0 * * 0":
		return "Weekly on Sunday at midnight"
	default:
		return "Custom schedule: " + schedule
	}
}

// Start registers the cleanup job and starts cron. The scheduler stops
// itself when ctx is cancelled.
func (s *CoverCleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if s.schedule == "" {
		log.Printf("Cover cleanup scheduler: disabled")
		return ErrDisabled
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runCleanup)
	if err != nil {
		return fmt.Errorf("failed to schedule cover cleanup: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Cover cleanup scheduler: started with schedule '%s' (%s). Next run: %v",
		s.schedule, Describe(s.schedule), s.cron.Entry(entryID).Next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *CoverCleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)

	cancel := s.cancelFunc
	s.isRunning = false
	s.cancelFunc = nil
	cancel()

	log.Printf("Cover cleanup scheduler: stopped")
}

// RunNow queues a cleanup immediately.
func (s *CoverCleanupScheduler) RunNow() error {
	if s.enqueuer == nil {
		return fmt.Errorf("cover cleanup enqueuer not configured")
	}
	return s.enqueuer.EnqueueCoverCleanup()
}

// IsRunning returns whether the scheduler is active.
func (s *CoverCleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next cleanup will be queued, or nil when stopped.
func (s *CoverCleanupScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

func (s *CoverCleanupScheduler) runCleanup() {
	if err := s.RunNow(); err != nil {
		log.Printf("Cover cleanup scheduler: %v", err)
		return
	}
	log.Printf("Cover cleanup scheduler: cleanup queued")
}
