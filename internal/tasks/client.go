package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client runs background shelf maintenance on a backlite queue that lives
// in its own SQLite file next to the shelf database.
type Client struct {
	queue   *backlite.Client
	db      *sql.DB
	workers int
	running atomic.Bool
}

// DBPath returns the queue database path for a shelf database,
// e.g. "data/shelf.db" becomes "data/shelf-tasks.db".
func DBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	// Each worker holds a connection while it runs; the rest serve enqueues.
	db.SetMaxOpenConns(workers + 4)
	db.SetMaxIdleConns(workers + 1)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewClient opens the queue database next to mainDBPath and installs the
// backlite schema. Queues must be registered before Start.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	workers := max(cfg.Workers, 1)

	db, err := openQueueDB(DBPath(mainDBPath), workers)
	if err != nil {
		return nil, err
	}

	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{},
	})
	if err == nil {
		err = queue.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up task queue: %w", err)
	}

	return &Client{queue: queue, db: db, workers: workers}, nil
}

// Register adds task queues. Call it before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start launches the workers and returns. Only the first call has an effect.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	log.Printf("[TASK] queue started with %d workers", c.workers)
	c.queue.Start(ctx)
}

// Stop waits for running tasks. It returns false when ctx expired first.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.running.Load() {
		return true
	}
	graceful := c.queue.Stop(ctx)
	if graceful {
		log.Printf("[TASK] queue stopped")
	} else {
		log.Printf("[TASK] queue stop timed out, unfinished tasks will be retried on next start")
	}
	return graceful
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks that the queue database is reachable.
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Add starts an operation to enqueue one or more tasks.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.queue.Add(tasks...)
}

// EnqueueCoverCache schedules a download of a remote cover for the book.
func (c *Client) EnqueueCoverCache(ctx context.Context, userID, bookID uint, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.Add(CacheCoverTask{UserID: userID, BookID: bookID, URL: url}).Save(); err != nil {
		return fmt.Errorf("enqueue cover cache for book %d: %w", bookID, err)
	}
	return nil
}

// EnqueueCoverCleanup schedules removal of unreferenced cover files.
func (c *Client) EnqueueCoverCleanup() error {
	if _, err := c.Add(CleanupCoversTask{}).Save(); err != nil {
		return fmt.Errorf("enqueue cover cleanup: %w", err)
	}
	return nil
}

// queueLogger routes backlite's own messages to the standard logger.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (queueLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
