// Command seed_demo creates a demo shelf database with a sample account and public domain books.
// Usage: go run ./cmd/seed_demo [-db path/to/demo.db] [-email demo@example.com] [-password demo-password]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/bookkeeper/internal/database"
	"github.com/mrlokans/bookkeeper/internal/database/settings"
	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/repository"
	"github.com/mrlokans/bookkeeper/internal/settingsstore"
)

const defaultDemoDatabasePath = "./demo/demo.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	name := flag.String("name", "Demo Reader", "display name of the demo account")
	email := flag.String("email", "demo@example.com", "email of the demo account")
	password := flag.String("password", "demo-password", "password of the demo account")
	login := flag.Bool("login", true, "remember the demo account as logged in")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create demo directory: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := repository.New(db.DB, bcrypt.DefaultCost)

	user, err := repo.RegisterUser(ctx, *name, *email, *password)
	if err != nil {
		log.Fatalf("Failed to create demo user: %v", err)
	}
	log.Printf("Created user %s <%s>", user.Name, user.Email)

	for _, book := range publicDomainBooks(user.ID) {
		if err := repo.SaveBook(ctx, &book); err != nil {
			log.Printf("Failed to save book %s: %v", book.Title, err)
			continue
		}
		log.Printf("Saved: %s by %s (%s)", book.Title, book.Author, book.Status.Label())
	}

	if *login {
		prefs := settingsstore.New(settings.NewRepository(db.DB))
		if err := prefs.SetLoggedInUserID(user.ID); err != nil {
			log.Fatalf("Failed to remember demo user: %v", err)
		}
	}

	log.Println("Demo database generated successfully!")
}

func publicDomainBooks(userID uint) []entities.Book {
	now := time.Now()
	started := now.AddDate(0, 0, -12)
	finishedStart := now.AddDate(0, -2, 0)
	finished := now.AddDate(0, -1, -3)

	return []entities.Book{
		{
			UserID:      userID,
			Title:       "Meditations",
			Author:      "Marcus Aurelius",
			Description: "Private notes of a Roman emperor on Stoic philosophy.",
			Notes:       "You have power over your mind - not outside events.",
			Status:      entities.BookStatusRead,
			TotalPages:  254,
			CurrentPage: 254,
			Rating:      5,
			IsFavorite:  true,
			StartedAt:   &finishedStart,
			FinishedAt:  &finished,
			CoverColor:  0xFF5D4037,
		},
		{
			UserID:      userID,
			Title:       "Pride and Prejudice",
			Author:      "Jane Austen",
			ISBN:        "9780141439518",
			Status:      entities.BookStatusReading,
			TotalPages:  480,
			CurrentPage: 132,
			StartedAt:   &started,
			CoverColor:  0xFF1565C0,
		},
		{
			UserID:     userID,
			Title:      "Moby-Dick",
			Author:     "Herman Melville",
			ISBN:       "9780142437247",
			Status:     entities.BookStatusWantToRead,
			TotalPages: 720,
			CoverColor: 0xFF00695C,
		},
		{
			UserID:     userID,
			Title:      "Walden",
			Author:     "Henry David Thoreau",
			Status:     entities.BookStatusWantToRead,
			TotalPages: 352,
		},
		{
			UserID:      userID,
			Title:       "Frankenstein",
			Author:      "Mary Shelley",
			ISBN:        "9780141439471",
			Description: "A young scientist creates a living being and abandons it.",
			Status:      entities.BookStatusRead,
			TotalPages:  280,
			CurrentPage: 280,
			Rating:      4,
			FinishedAt:  &finished,
		},
	}
}
