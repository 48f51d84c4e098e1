package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8190), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, SchemaPolicyMigrate, cfg.Database.SchemaPolicy)
	assert.Equal(t, 5*time.Second, cfg.Session.BooksGrace)
	assert.Equal(t, time.Duration(0), cfg.Session.SplashDelay)
	assert.Equal(t, []string{"google", "openlibrary"}, cfg.Metadata.Providers)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_SCHEMA_POLICY", "Destructive")
	t.Setenv("METADATA_PROVIDERS", " OpenLibrary , ")
	t.Setenv("SESSION_SPLASH_DELAY", "1500ms")

	cfg := NewConfig()

	assert.Equal(t, SchemaPolicyDestructive, cfg.Database.SchemaPolicy)
	assert.Equal(t, []string{"openlibrary"}, cfg.Metadata.Providers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.SplashDelay)
}
