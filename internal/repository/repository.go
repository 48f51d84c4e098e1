// Package repository is the façade the session talks to. It translates
// domain operations into store calls, owns password hashing and the
// duplicate-email check, and publishes a live per-user view of the shelf.
//
// # Usage
//
//	repo := repository.New(db.DB, cfg.Auth.BcryptCost)
//	user, err := repo.Login(ctx, "ana@x.com", "pw1")
//	books, err := repo.WatchBooks(ctx, user.ID)
//	for shelf := range books {
//		...
//	}
package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookkeeper/internal/auth"
	"github.com/mrlokans/bookkeeper/internal/database/books"
	"github.com/mrlokans/bookkeeper/internal/database/users"
	"github.com/mrlokans/bookkeeper/internal/entities"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrBookNotFound       = errors.New("book not found")
	ErrBookOwnerRequired  = errors.New("book has no owner")
	ErrCoverChanged       = errors.New("book cover changed")
	ErrStorage            = errors.New("storage failure")
)

type Repository struct {
	db         *gorm.DB
	bcryptCost int
	feed       *changeFeed
	now        func() time.Time
}

func New(db *gorm.DB, bcryptCost int) *Repository {
	return &Repository{
		db:         db,
		bcryptCost: bcryptCost,
		feed:       newChangeFeed(),
		now:        time.Now,
	}
}

func (r *Repository) users(ctx context.Context) *users.Repository {
	return users.NewRepository(r.db.WithContext(ctx))
}

func (r *Repository) books(ctx context.Context) *books.Repository {
	return books.NewRepository(r.db.WithContext(ctx))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsStorageError reports whether err came from the underlying store.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Login returns the user whose email and password match.
func (r *Repository) Login(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := r.users(ctx).GetUserByEmail(email)
	if users.IsNotFound(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageError("login", err)
	}

	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	return user, nil
}

// RegisterUser creates a user with a hashed password and returns it with its id.
func (r *Repository) RegisterUser(ctx context.Context, name, email, password string) (*entities.User, error) {
	name = strings.TrimSpace(name)
	email = users.NormalizeEmail(email)
	if err := auth.ValidateRegistration(name, email, password); err != nil {
		return nil, err
	}

	repo := r.users(ctx)
	taken, err := repo.EmailTaken(email, 0)
	if err != nil {
		return nil, storageError("register", err)
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	hash, err := auth.HashPassword(password, r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register: failed to hash password: %w", err)
	}

	user := &entities.User{Name: name, Email: email, PasswordHash: hash}
	if err := repo.CreateUser(user); err != nil {
		// Lost a race against a concurrent registration.
		if taken, _ := repo.EmailTaken(email, 0); taken {
			return nil, ErrDuplicateEmail
		}
		return nil, storageError("register", err)
	}

	log.Printf("Registered user %d (%s)", user.ID, user.Email)
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*entities.User, error) {
	user, err := r.users(ctx).GetUserByID(id)
	if users.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageError("get user", err)
	}
	return user, nil
}

// UpdateUser writes profile fields. An empty PasswordHash keeps the stored one.
func (r *Repository) UpdateUser(ctx context.Context, user *entities.User) error {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = users.NormalizeEmail(user.Email)
	if err := auth.ValidateName(user.Name); err != nil {
		return err
	}
	if err := auth.ValidateEmail(user.Email); err != nil {
		return err
	}

	repo := r.users(ctx)
	existing, err := repo.GetUserByID(user.ID)
	if users.IsNotFound(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return storageError("update user", err)
	}

	taken, err := repo.EmailTaken(user.Email, user.ID)
	if err != nil {
		return storageError("update user", err)
	}
	if taken {
		return ErrDuplicateEmail
	}

	if user.PasswordHash == "" {
		user.PasswordHash = existing.PasswordHash
	}
	user.CreatedAt = existing.CreatedAt
	if err := repo.UpdateUser(user); err != nil {
		if users.IsNotFound(err) {
			return ErrUserNotFound
		}
		return storageError("update user", err)
	}
	return nil
}

// DeleteUser removes the user and their shelf.
func (r *Repository) DeleteUser(ctx context.Context, id uint) error {
	if err := r.users(ctx).DeleteUser(id); err != nil {
		if users.IsNotFound(err) {
			return ErrUserNotFound
		}
		return storageError("delete user", err)
	}
	r.feed.publish(id)
	log.Printf("Deleted user %d and their shelf", id)
	return nil
}

// ListBooks returns a snapshot of the user's shelf ordered by title.
func (r *Repository) ListBooks(ctx context.Context, userID uint) ([]entities.Book, error) {
	shelf, err := r.books(ctx).GetBooksForUser(userID)
	if err != nil {
		return nil, storageError("list books", err)
	}
	return shelf, nil
}

// WatchBooks emits the user's shelf immediately and again after every
// committed write that touches it. Slow readers only see the latest shelf.
// The channel is closed when ctx is done.
func (r *Repository) WatchBooks(ctx context.Context, userID uint) (<-chan []entities.Book, error) {
	// Subscribe before the first read so no write slips between them.
	changed, unsubscribe := r.feed.subscribe(userID)

	initial, err := r.ListBooks(ctx, userID)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan []entities.Book, 1)
	out <- initial

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}

			shelf, err := r.ListBooks(ctx, userID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Failed to refresh shelf for user %d: %v", userID, err)
				continue
			}

			select {
			case out <- shelf:
			default:
				// Reader is behind: replace the pending shelf with the newer one.
				select {
				case <-out:
				default:
				}
				out <- shelf
			}
		}
	}()

	return out, nil
}

// GetBook returns the book only if it belongs to userID.
func (r *Repository) GetBook(ctx context.Context, userID, bookID uint) (*entities.Book, error) {
	book, err := r.books(ctx).GetBookForUser(userID, bookID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, storageError("get book", err)
	}
	return book, nil
}

// FindBookByTitle looks for a book with the same title on the shelf, ignoring case.
func (r *Repository) FindBookByTitle(ctx context.Context, userID uint, title string) (*entities.Book, error) {
	book, err := r.books(ctx).FindBookByTitle(userID, title)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, storageError("find book", err)
	}
	return book, nil
}

// SaveBook inserts the book or replaces the row with the same id.
// A book id owned by another user is treated as unknown.
func (r *Repository) SaveBook(ctx context.Context, book *entities.Book) error {
	if book.UserID == 0 {
		return ErrBookOwnerRequired
	}
	repo := r.books(ctx)
	if book.ID != 0 {
		existing, err := repo.GetBookByID(book.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return storageError("save book", err)
		}
		if err == nil && existing.UserID != book.UserID {
			return ErrBookNotFound
		}
		if err == nil {
			book.CreatedAt = existing.CreatedAt
			if book.StartedAt == nil {
				book.StartedAt = existing.StartedAt
			}
			if book.FinishedAt == nil {
				book.FinishedAt = existing.FinishedAt
			}
		}
	}

	book.Normalize(r.now())
	if err := repo.SaveBook(book); err != nil {
		return storageError("save book", err)
	}
	r.feed.publish(book.UserID)
	return nil
}

// UpdateBook replaces an existing book of the same owner.
func (r *Repository) UpdateBook(ctx context.Context, book *entities.Book) error {
	existing, err := r.GetBook(ctx, book.UserID, book.ID)
	if err != nil {
		return err
	}

	book.CreatedAt = existing.CreatedAt
	if book.StartedAt == nil {
		book.StartedAt = existing.StartedAt
	}
	if book.FinishedAt == nil {
		book.FinishedAt = existing.FinishedAt
	}
	book.Normalize(r.now())
	if err := r.books(ctx).UpdateBook(book); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return storageError("update book", err)
	}
	r.feed.publish(book.UserID)
	return nil
}

// ReplaceCover points the book at newRef if its cover is still oldRef,
// leaving every other field alone. It returns ErrCoverChanged when the book
// is gone or was given another cover meanwhile.
func (r *Repository) ReplaceCover(ctx context.Context, userID, bookID uint, oldRef, newRef string) error {
	swapped, err := r.books(ctx).SwapCoverRef(userID, bookID, oldRef, newRef)
	if err != nil {
		return storageError("replace cover", err)
	}
	if !swapped {
		return ErrCoverChanged
	}
	r.feed.publish(userID)
	return nil
}

// DeleteBook removes the book from its owner's shelf.
func (r *Repository) DeleteBook(ctx context.Context, book *entities.Book) error {
	if _, err := r.GetBook(ctx, book.UserID, book.ID); err != nil {
		return err
	}
	if err := r.books(ctx).DeleteBook(book.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return storageError("delete book", err)
	}
	r.feed.publish(book.UserID)
	return nil
}

// ShelfStats returns the number of books per status.
func (r *Repository) ShelfStats(ctx context.Context, userID uint) (map[entities.BookStatus]int64, error) {
	counts, err := r.books(ctx).CountBooksForUser(userID)
	if err != nil {
		return nil, storageError("shelf stats", err)
	}
	return counts, nil
}

// CoverRefs returns every cover reference still used by any book.
func (r *Repository) CoverRefs(ctx context.Context) ([]string, error) {
	refs, err := r.books(ctx).GetCoverRefs()
	if err != nil {
		return nil, storageError("cover refs", err)
	}
	return refs, nil
}
