package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Session
		Metadata
		Covers
		Tasks
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path         string
		SchemaPolicy string // "migrate" (default) or "destructive"
	}
	Session struct {
		SplashDelay time.Duration // Artificial delay before restoring a saved user
		BooksGrace  time.Duration // How long the book list stays subscribed after the last observer leaves
	}
	Metadata struct {
		Providers          []string // Lookup order, e.g. "google,openlibrary"
		GoogleBooksURL     string
		GoogleBooksAPIKey  string
		OpenLibraryURL     string
		RequestTimeout     time.Duration
		MinRequestInterval time.Duration
	}
	Covers struct {
		Dir             string
		CacheRemote     bool   // Download remote thumbnails into Dir after an ISBN add
		CleanupSchedule string // Cron format, empty disables cleanup
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		BcryptCost       int
		LoginMaxAttempts int           // Failed logins before lockout, per client and email
		LoginWindow      time.Duration // Window the failures are counted in
		LoginLockout     time.Duration
	}
)

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_schema_policy", SchemaPolicyMigrate)

	// Session defaults
	v.SetDefault("session_splash_delay", "0s")
	v.SetDefault("session_books_grace", "5s")

	// Metadata lookup defaults
	v.SetDefault("metadata_providers", "google,openlibrary")
	v.SetDefault("google_books_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("openlibrary_url", "https://openlibrary.org")
	v.SetDefault("metadata_timeout", "10s")
	v.SetDefault("metadata_min_interval", "1s")

	// Cover storage defaults
	v.SetDefault("covers_dir", DefaultCoversDir)
	v.SetDefault("covers_cache_remote", false)
	v.SetDefault("covers_cleanup_schedule", "0 4 * * *") // Daily at 04:00

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_login_max_attempts", 5)
	v.SetDefault("auth_login_window", "15m")
	v.SetDefault("auth_login_lockout", "30m")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:         v.GetString("DATABASE_PATH"),
			SchemaPolicy: strings.ToLower(v.GetString("DATABASE_SCHEMA_POLICY")),
		},
		Session: Session{
			SplashDelay: v.GetDuration("SESSION_SPLASH_DELAY"),
			BooksGrace:  v.GetDuration("SESSION_BOOKS_GRACE"),
		},
		Metadata: Metadata{
			Providers:          splitList(v.GetString("METADATA_PROVIDERS")),
			GoogleBooksURL:     v.GetString("GOOGLE_BOOKS_URL"),
			GoogleBooksAPIKey:  v.GetString("GOOGLE_BOOKS_API_KEY"),
			OpenLibraryURL:     v.GetString("OPENLIBRARY_URL"),
			RequestTimeout:     v.GetDuration("METADATA_TIMEOUT"),
			MinRequestInterval: v.GetDuration("METADATA_MIN_INTERVAL"),
		},
		Covers: Covers{
			Dir:             v.GetString("COVERS_DIR"),
			CacheRemote:     v.GetBool("COVERS_CACHE_REMOTE"),
			CleanupSchedule: v.GetString("COVERS_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			LoginMaxAttempts: v.GetInt("AUTH_LOGIN_MAX_ATTEMPTS"),
			LoginWindow:      v.GetDuration("AUTH_LOGIN_WINDOW"),
			LoginLockout:     v.GetDuration("AUTH_LOGIN_LOCKOUT"),
		},
	}
}
