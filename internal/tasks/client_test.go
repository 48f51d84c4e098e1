package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookkeeper/internal/config"
	"github.com/mrlokans/bookkeeper/internal/covers"
	"github.com/mrlokans/bookkeeper/internal/database"
	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/repository"
)

func TestDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "shelf-tasks.db"), DBPath(filepath.Join("data", "shelf.db")))
	assert.Equal(t, "shelf-tasks", DBPath("shelf"))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "test-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestClientPing(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)

	assert.NoError(t, client.Ping())
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(), "closed queue database")
}

func TestStopWithoutStart(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.Stop(context.Background()))
}

func TestCacheCoverTaskConfig(t *testing.T) {
	cfg := CacheCoverTask{BookID: 1}.Config()

	assert.Equal(t, "cache_cover", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Backoff)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestCleanupCoversTaskConfig(t *testing.T) {
	cfg := CleanupCoversTask{}.Config()

	assert.Equal(t, "cleanup_covers", cfg.Name)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(config.Tasks{Workers: 4, CleanupInterval: 10 * time.Minute})

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, 10*time.Minute, cfg.CleanupInterval)
}

type fixture struct {
	repo   *repository.Repository
	covers *covers.Store
	user   *entities.User
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "shelf.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := covers.NewStore(filepath.Join(t.TempDir(), "covers"))
	require.NoError(t, err)

	repo := repository.New(db.DB, bcrypt.MinCost)
	user, err := repo.RegisterUser(context.Background(), "Ana", "ana@x.com", "pw1")
	require.NoError(t, err)

	return &fixture{repo: repo, covers: store, user: user}
}

func (f *fixture) addBook(t *testing.T, coverRef string) *entities.Book {
	t.Helper()
	book := &entities.Book{UserID: f.user.ID, Title: "Dune", Author: "Frank Herbert", CoverRef: coverRef}
	require.NoError(t, f.repo.SaveBook(context.Background(), book))
	return book
}

func coverServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCacheCoverProcessor(t *testing.T) {
	f := setupFixture(t)
	srv := coverServer(t)
	book := f.addBook(t, srv.URL+"/dune.png")

	process := CacheCoverProcessor(f.covers, f.repo)
	err := process(context.Background(), CacheCoverTask{UserID: f.user.ID, BookID: book.ID, URL: book.CoverRef})
	require.NoError(t, err)

	updated, err := f.repo.GetBook(context.Background(), f.user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, f.covers.Owns(updated.CoverRef), "cover should point into the store")
	assert.Equal(t, ".png", filepath.Ext(updated.CoverRef))

	data, err := os.ReadFile(updated.CoverRef)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))
}

func TestCacheCoverProcessor_CoverChanged(t *testing.T) {
	f := setupFixture(t)
	srv := coverServer(t)
	book := f.addBook(t, srv.URL+"/other.png")

	process := CacheCoverProcessor(f.covers, f.repo)
	err := process(context.Background(), CacheCoverTask{UserID: f.user.ID, BookID: book.ID, URL: srv.URL + "/dune.png"})
	require.NoError(t, err)

	unchanged, err := f.repo.GetBook(context.Background(), f.user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/other.png", unchanged.CoverRef)
	assert.Empty(t, storedFiles(t, f.covers.Dir()))
}

// editingServer runs edit while the cover download is in flight.
func editingServer(t *testing.T, edit func()) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		edit()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCacheCoverProcessor_KeepsEditsMadeDuringDownload(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	var book *entities.Book
	srv := editingServer(t, func() {
		current, err := f.repo.GetBook(ctx, f.user.ID, book.ID)
		if !assert.NoError(t, err) {
			return
		}
		current.Notes = "my review"
		current.TotalPages = 400
		current.CurrentPage = 120
		current.Status = entities.BookStatusReading
		assert.NoError(t, f.repo.UpdateBook(ctx, current))
	})
	book = f.addBook(t, srv.URL+"/dune.png")

	process := CacheCoverProcessor(f.covers, f.repo)
	require.NoError(t, process(ctx, CacheCoverTask{UserID: f.user.ID, BookID: book.ID, URL: book.CoverRef}))

	stored, err := f.repo.GetBook(ctx, f.user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, f.covers.Owns(stored.CoverRef))
	assert.Equal(t, "my review", stored.Notes)
	assert.Equal(t, 120, stored.CurrentPage)
	assert.Equal(t, 400, stored.TotalPages)
	assert.Equal(t, entities.BookStatusReading, stored.Status)
}

func TestCacheCoverProcessor_CoverChangedDuringDownload(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	var book *entities.Book
	srv := editingServer(t, func() {
		current, err := f.repo.GetBook(ctx, f.user.ID, book.ID)
		if !assert.NoError(t, err) {
			return
		}
		current.CoverRef = "https://example.com/chosen.jpg"
		assert.NoError(t, f.repo.UpdateBook(ctx, current))
	})
	book = f.addBook(t, srv.URL+"/dune.png")

	process := CacheCoverProcessor(f.covers, f.repo)
	require.NoError(t, process(ctx, CacheCoverTask{UserID: f.user.ID, BookID: book.ID, URL: book.CoverRef}))

	stored, err := f.repo.GetBook(ctx, f.user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/chosen.jpg", stored.CoverRef)
	assert.Empty(t, storedFiles(t, f.covers.Dir()), "downloaded copy is discarded")
}

func TestCacheCoverProcessor_BookGone(t *testing.T) {
	f := setupFixture(t)
	srv := coverServer(t)

	process := CacheCoverProcessor(f.covers, f.repo)
	err := process(context.Background(), CacheCoverTask{UserID: f.user.ID, BookID: 999, URL: srv.URL + "/dune.png"})
	require.NoError(t, err)
	assert.Empty(t, storedFiles(t, f.covers.Dir()))
}

func TestCacheCoverProcessor_FetchFails(t *testing.T) {
	f := setupFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	book := f.addBook(t, srv.URL+"/dune.png")

	process := CacheCoverProcessor(f.covers, f.repo)
	err := process(context.Background(), CacheCoverTask{UserID: f.user.ID, BookID: book.ID, URL: book.CoverRef})
	assert.Error(t, err)
}

func TestCacheCoverProcessor_NotConfigured(t *testing.T) {
	process := CacheCoverProcessor(nil, nil)
	assert.Error(t, process(context.Background(), CacheCoverTask{}))
}

func TestCleanupCoversProcessor(t *testing.T) {
	f := setupFixture(t)

	kept, err := f.covers.Import(strings.NewReader("kept"), ".png")
	require.NoError(t, err)
	orphan, err := f.covers.Import(strings.NewReader("orphan"), ".png")
	require.NoError(t, err)
	f.addBook(t, kept)

	process := CleanupCoversProcessor(f.repo, f.covers)
	require.NoError(t, process(context.Background(), CleanupCoversTask{}))

	_, err = os.Stat(kept)
	assert.NoError(t, err)
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestEnqueueCoverCache_RunsTask(t *testing.T) {
	f := setupFixture(t)
	srv := coverServer(t)
	book := f.addBook(t, srv.URL+"/dune.png")

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	client.Register(
		NewCacheCoverQueue(f.covers, f.repo),
		NewCleanupCoversQueue(f.repo, f.covers),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	watch, err := f.repo.WatchBooks(ctx, f.user.ID)
	require.NoError(t, err)
	<-watch

	require.NoError(t, client.EnqueueCoverCache(ctx, f.user.ID, book.ID, book.CoverRef))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case shelf := <-watch:
			if len(shelf) == 1 && f.covers.Owns(shelf[0].CoverRef) {
				return
			}
		case <-deadline:
			t.Fatal("cover was not cached within timeout")
		}
	}
}

func TestEnqueueCoverCache_CancelledContext(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.EnqueueCoverCache(ctx, 1, 1, "https://example.com/c.png"), context.Canceled)
}

// probeTask checks that arbitrary tasks round-trip through the queue.
type probeTask struct {
	Value string `json:"value"`
}

func (t probeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "probe_task",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestTaskEnqueue(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task probeTask) error {
		executed <- task.Value
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Add(probeTask{Value: "hello"}).Save()
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}
