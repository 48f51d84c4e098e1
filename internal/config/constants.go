package config

// Default paths for local storage
const (
	// DefaultDatabasePath is the default path for the shelf database
	DefaultDatabasePath = "./bookkeeper.db"

	// DefaultCoversDir is the default app-private directory for cover copies
	DefaultCoversDir = "./covers"
)

// Schema policies applied when the stored schema version differs from the code.
const (
	SchemaPolicyMigrate     = "migrate"     // additive auto-migration, data is kept
	SchemaPolicyDestructive = "destructive" // drop and recreate all tables
)
