package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// CoverRefSource lists the cover references still used by books.
type CoverRefSource interface {
	CoverRefs(ctx context.Context) ([]string, error)
}

// CoverCleaner deletes stored covers that are not referenced.
type CoverCleaner interface {
	Cleanup(referenced []string) (int, error)
}

// CleanupCoversTask removes cover files that no book points at.
type CleanupCoversTask struct{}

// Config returns the queue configuration for cover cleanup tasks.
func (t CleanupCoversTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_covers",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupCoversProcessor creates a processor function for CleanupCoversTask.
func CleanupCoversProcessor(refs CoverRefSource, cleaner CoverCleaner) backlite.QueueProcessor[CleanupCoversTask] {
	return func(ctx context.Context, task CleanupCoversTask) error {
		if refs == nil || cleaner == nil {
			return fmt.Errorf("cover cleanup not configured")
		}

		referenced, err := refs.CoverRefs(ctx)
		if err != nil {
			return fmt.Errorf("list cover refs: %w", err)
		}

		removed, err := cleaner.Cleanup(referenced)
		if err != nil {
			return fmt.Errorf("cleanup covers: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d unused covers", removed)
		return nil
	}
}

// NewCleanupCoversQueue creates a backlite queue for cover cleanup tasks.
func NewCleanupCoversQueue(refs CoverRefSource, cleaner CoverCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupCoversProcessor(refs, cleaner))
}
