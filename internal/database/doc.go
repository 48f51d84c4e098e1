// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, schema policy, settings table
//	├── books/           # Shelf book CRUD and per-status counts
//	├── settings/        # Key-value preferences
//	└── users/           # Account rows
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.Open("./shelf.db", database.Options{})
//
//	booksRepo := books.NewRepository(db.DB)
//	usersRepo := users.NewRepository(db.DB)
//
//	shelf, err := booksRepo.GetBooksForUser(userID)
//
// Most callers go through internal/repository, which adds password
// hashing, ownership checks and the live book feed on top of these.
//
// # Schema policy
//
// Open applies the schema according to Options.SchemaPolicy. "migrate"
// auto-migrates in place; "destructive" drops and recreates every table
// when the stored schema version differs from SchemaVersion.
package database
