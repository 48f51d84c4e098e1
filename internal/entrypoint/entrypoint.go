package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/auth"
	"github.com/mrlokans/bookkeeper/internal/config"
	"github.com/mrlokans/bookkeeper/internal/covers"
	"github.com/mrlokans/bookkeeper/internal/database"
	"github.com/mrlokans/bookkeeper/internal/database/settings"
	http_controllers "github.com/mrlokans/bookkeeper/internal/http"
	"github.com/mrlokans/bookkeeper/internal/metadata"
	"github.com/mrlokans/bookkeeper/internal/repository"
	"github.com/mrlokans/bookkeeper/internal/scheduler"
	"github.com/mrlokans/bookkeeper/internal/session"
	"github.com/mrlokans/bookkeeper/internal/settingsstore"
	"github.com/mrlokans/bookkeeper/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App is the process-wide object graph. Build it once with NewApp and pass
// it to whatever consumes it.
type App struct {
	Config    *config.Config
	Database  *database.Database
	Prefs     *settingsstore.SettingsStore
	Repo      *repository.Repository
	Lookup    *metadata.Chain
	Covers    *covers.Store
	Tasks     *tasks.Client // nil when the queue is disabled
	Scheduler *scheduler.CoverCleanupScheduler
	Throttle  *auth.LoginThrottle
	Notices   *session.LogNotifier
	Session   *session.Session

	taskCancel context.CancelFunc
}

// NewApp opens storage and wires every component. Background workers are
// not started; see StartBackground.
func NewApp(cfg *config.Config) (*App, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := database.Open(cfg.Database.Path, database.Options{SchemaPolicy: cfg.Database.SchemaPolicy})
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Database: db}

	fail := func(err error) (*App, error) {
		app.closeStorage()
		return nil, err
	}

	app.Prefs = settingsstore.New(settings.NewRepository(db.DB))
	app.Repo = repository.New(db.DB, cfg.Auth.BcryptCost)

	app.Lookup, err = metadata.NewChainFromConfig(cfg.Metadata)
	if err != nil {
		return fail(err)
	}
	log.Printf("Metadata lookup providers: %s", app.Lookup.Name())

	app.Covers, err = covers.NewStore(cfg.Covers.Dir)
	if err != nil {
		return fail(err)
	}
	log.Printf("Cover storage initialized at %s", app.Covers.Dir())

	if cfg.Tasks.Enabled {
		app.Tasks, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFromSettings(cfg.Tasks))
		if err != nil {
			return fail(fmt.Errorf("failed to initialize task queue: %w", err))
		}
		app.Tasks.Register(
			tasks.NewCacheCoverQueue(app.Covers, app.Repo),
			tasks.NewCleanupCoversQueue(app.Repo, app.Covers),
		)
		app.Scheduler = scheduler.NewCoverCleanupScheduler(cfg.Covers.CleanupSchedule, app.Tasks)
	}

	app.Throttle = auth.NewLoginThrottle(auth.ThrottleConfig{
		MaxAttempts:     cfg.Auth.LoginMaxAttempts,
		WindowDuration:  cfg.Auth.LoginWindow,
		LockoutDuration: cfg.Auth.LoginLockout,
	})

	app.Notices = session.NewLogNotifier(50)
	opts := session.Options{
		SplashDelay: cfg.Session.SplashDelay,
		BooksGrace:  cfg.Session.BooksGrace,
		Notifier:    app.Notices,
	}
	if cfg.Covers.CacheRemote && app.Tasks != nil {
		opts.Covers = app.Tasks
	}
	app.Session = session.New(app.Repo, app.Lookup, app.Prefs, opts)

	return app, nil
}

// StartBackground starts the task workers and the cover cleanup schedule.
func (a *App) StartBackground(ctx context.Context) error {
	if a.Tasks == nil {
		log.Printf("Task queue disabled")
		return nil
	}

	var taskCtx context.Context
	taskCtx, a.taskCancel = context.WithCancel(ctx)
	go a.Tasks.Start(taskCtx)

	if err := a.Scheduler.Start(ctx); err != nil && !errors.Is(err, scheduler.ErrDisabled) {
		return err
	}
	return nil
}

// Router builds the HTTP API over the app's session.
func (a *App) Router(version string) *gin.Engine {
	cfg := http_controllers.RouterConfig{
		Session:   a.Session,
		Database:  a.Database,
		Covers:    a.Covers,
		Notices:   a.Notices,
		Throttle:  a.Throttle,
		AccessLog: true,
		Version:   version,
	}
	if a.Tasks != nil {
		cfg.TaskQueue = a.Tasks
	}
	return http_controllers.NewRouter(cfg)
}

// Close stops background work and releases storage.
func (a *App) Close(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Tasks != nil && a.taskCancel != nil {
		a.Tasks.Stop(ctx)
		a.taskCancel()
		a.taskCancel = nil
	}
	if a.Session != nil {
		a.Session.Close()
	}
	a.closeStorage()
}

func (a *App) closeStorage() {
	if a.Tasks != nil {
		if err := a.Tasks.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
		a.Tasks = nil
	}
	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
		a.Database = nil
	}
}

// Serve runs router until SIGINT or SIGTERM, then shuts down gracefully.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Book streams never go idle on their own.
	srv.RegisterOnShutdown(cancelRequests)

	listenErr := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
	return nil
}

// Run builds the app, restores the saved session and serves the HTTP API.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Bookkeeper v%s", version)

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.StartBackground(ctx); err != nil {
		app.Close(ctx)
		return err
	}

	// The API reports is_loading until this finishes.
	go app.Session.Restore(ctx)

	return Serve(app.Router(version), cfg, func(ctx context.Context) {
		app.Close(ctx)
	})
}
