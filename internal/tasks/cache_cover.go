package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/repository"
)

// CoverFetcher downloads remote covers into local storage.
type CoverFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Remove(ref string) error
}

// BookStore reads books and swaps their cover on behalf of their owner.
type BookStore interface {
	GetBook(ctx context.Context, userID, bookID uint) (*entities.Book, error)
	ReplaceCover(ctx context.Context, userID, bookID uint, oldRef, newRef string) error
}

// CacheCoverTask replaces a book's remote cover URL with a local copy.
type CacheCoverTask struct {
	UserID uint   `json:"user_id"`
	BookID uint   `json:"book_id"`
	URL    string `json:"url"`
}

// Config returns the queue configuration for cover caching tasks.
func (t CacheCoverTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cache_cover",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CacheCoverProcessor creates a processor function for CacheCoverTask.
// A book that was deleted or got another cover in the meantime is left alone.
// Only the cover reference is written, so edits made during the download survive.
func CacheCoverProcessor(covers CoverFetcher, books BookStore) backlite.QueueProcessor[CacheCoverTask] {
	return func(ctx context.Context, task CacheCoverTask) error {
		if covers == nil || books == nil {
			return fmt.Errorf("cover cache not configured")
		}

		book, err := books.GetBook(ctx, task.UserID, task.BookID)
		if errors.Is(err, repository.ErrBookNotFound) {
			log.Printf("[TASK] Book %d is gone, skipping cover cache", task.BookID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load book %d: %w", task.BookID, err)
		}
		if book.CoverRef != task.URL {
			log.Printf("[TASK] Book %d cover changed, skipping cover cache", task.BookID)
			return nil
		}

		local, err := covers.Fetch(ctx, task.URL)
		if err != nil {
			return fmt.Errorf("fetch cover for book %d: %w", task.BookID, err)
		}

		err = books.ReplaceCover(ctx, task.UserID, task.BookID, task.URL, local)
		if err != nil {
			if rmErr := covers.Remove(local); rmErr != nil {
				log.Printf("[TASK ERROR] Failed to remove orphan cover %s: %v", local, rmErr)
			}
			if errors.Is(err, repository.ErrCoverChanged) {
				log.Printf("[TASK] Book %d changed during download, discarding cover", task.BookID)
				return nil
			}
			return fmt.Errorf("update cover for book %d: %w", task.BookID, err)
		}

		log.Printf("[TASK] Cached cover for book %d (%s)", book.ID, book.Title)
		return nil
	}
}

// NewCacheCoverQueue creates a backlite queue for cover caching tasks.
func NewCacheCoverQueue(covers CoverFetcher, books BookStore) backlite.Queue {
	return backlite.NewQueue(CacheCoverProcessor(covers, books))
}
