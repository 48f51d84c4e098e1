package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/metadata"
	"github.com/mrlokans/bookkeeper/internal/repository"
)

// ListBooks reads the shelf straight from the store, optionally filtered by status.
func (s *Session) ListBooks(ctx context.Context, status string) ([]entities.Book, Result) {
	user, res := s.requireUser()
	if res != nil {
		return nil, *res
	}

	var filter entities.BookStatus
	if strings.TrimSpace(status) != "" {
		parsed, valid := entities.ParseBookStatus(status)
		if !valid {
			return nil, fail(InvalidInput, fmt.Sprintf("Unknown status %q", status), nil)
		}
		filter = parsed
	}

	shelf, err := s.store.ListBooks(ctx, user.ID)
	if err != nil {
		return nil, classify("list books", err)
	}
	if filter == "" {
		return shelf, ok("")
	}

	filtered := make([]entities.Book, 0, len(shelf))
	for _, book := range shelf {
		if book.Status == filter {
			filtered = append(filtered, book)
		}
	}
	return filtered, ok("")
}

func (s *Session) GetBook(ctx context.Context, bookID uint) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	book, err := s.store.GetBook(ctx, user.ID, bookID)
	if err != nil {
		return classify("get book", err)
	}
	found := ok("")
	found.Book = book
	return found
}

// ShelfStats counts the current user's books per status.
func (s *Session) ShelfStats(ctx context.Context) (map[entities.BookStatus]int64, Result) {
	user, res := s.requireUser()
	if res != nil {
		return nil, *res
	}
	stats, err := s.store.ShelfStats(ctx, user.ID)
	if err != nil {
		return nil, classify("shelf stats", err)
	}
	return stats, ok("")
}

func validateBook(book *entities.Book) *Result {
	if blank(book.Title, book.Author) {
		res := fail(InvalidInput, "Title and author are required", nil)
		return &res
	}
	if _, valid := entities.ParseBookStatus(string(book.Status)); !valid {
		res := fail(InvalidInput, fmt.Sprintf("Unknown status %q", book.Status), nil)
		return &res
	}
	if book.TotalPages < 0 {
		res := fail(InvalidInput, "Total pages cannot be negative", nil)
		return &res
	}
	return nil
}

// SaveBook adds the book to the current user's shelf, or replaces it when
// the id is already on that shelf.
func (s *Session) SaveBook(ctx context.Context, book entities.Book) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	if res := validateBook(&book); res != nil {
		return *res
	}
	defer s.track()()

	book.UserID = user.ID
	if err := s.store.SaveBook(ctx, &book); err != nil {
		return classify("save book", err)
	}

	saved := ok("Book saved")
	saved.Book = &book
	return saved
}

// UpdateBook replaces a book that must already be on the current user's shelf.
func (s *Session) UpdateBook(ctx context.Context, book entities.Book) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	if book.ID == 0 {
		return fail(NotFound, "Book not found", repository.ErrBookNotFound)
	}
	if res := validateBook(&book); res != nil {
		return *res
	}
	defer s.track()()

	book.UserID = user.ID
	if err := s.store.UpdateBook(ctx, &book); err != nil {
		return classify("update book", err)
	}

	updated := ok("Book updated")
	updated.Book = &book
	return updated
}

// modifyBook loads a book of the current user, applies mutate and writes it back.
func (s *Session) modifyBook(ctx context.Context, op string, bookID uint, mutate func(*entities.Book) *Result) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	defer s.track()()

	book, err := s.store.GetBook(ctx, user.ID, bookID)
	if err != nil {
		return classify(op, err)
	}
	if res := mutate(book); res != nil {
		return *res
	}
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return classify(op, err)
	}

	updated := ok("Book updated")
	updated.Book = book
	return updated
}

func (s *Session) UpdateBookNotes(ctx context.Context, bookID uint, notes string) Result {
	return s.modifyBook(ctx, "update notes", bookID, func(book *entities.Book) *Result {
		book.Notes = notes
		return nil
	})
}

// UpdateProgress sets the current page, clamped to the book's page count.
// The returned book carries the page actually stored.
func (s *Session) UpdateProgress(ctx context.Context, bookID uint, page int) Result {
	clamped := false
	res := s.modifyBook(ctx, "update progress", bookID, func(book *entities.Book) *Result {
		book.CurrentPage = page
		clamped = book.ClampProgress()
		return nil
	})
	if res.OK() && clamped {
		res.Message = fmt.Sprintf("Progress adjusted to page %d", res.Book.CurrentPage)
	}
	return res
}

func (s *Session) SetStatus(ctx context.Context, bookID uint, status string) Result {
	parsed, valid := entities.ParseBookStatus(status)
	if !valid || strings.TrimSpace(status) == "" {
		return fail(InvalidInput, fmt.Sprintf("Unknown status %q", status), nil)
	}
	return s.modifyBook(ctx, "set status", bookID, func(book *entities.Book) *Result {
		book.Status = parsed
		return nil
	})
}

// SetCover points the book at a new cover, a local path or a remote URL.
func (s *Session) SetCover(ctx context.Context, bookID uint, ref string) Result {
	return s.modifyBook(ctx, "set cover", bookID, func(book *entities.Book) *Result {
		book.CoverRef = strings.TrimSpace(ref)
		return nil
	})
}

func (s *Session) DeleteBook(ctx context.Context, bookID uint) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	defer s.track()()

	book := &entities.Book{ID: bookID, UserID: user.ID}
	if err := s.store.DeleteBook(ctx, book); err != nil {
		return classify("delete book", err)
	}
	return ok("Book deleted")
}

// LookupISBN fetches catalogue data without touching the shelf.
func (s *Session) LookupISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, Result) {
	if metadata.NormalizeISBN(isbn) == "" {
		return nil, fail(InvalidInput, "Invalid ISBN", metadata.ErrInvalidISBN)
	}
	defer s.track()()

	found, err := s.lookup.SearchByISBN(ctx, isbn)
	if err != nil {
		return nil, classifyLookup(isbn, err)
	}
	return found, ok("")
}

func classifyLookup(isbn string, err error) Result {
	switch {
	case errors.Is(err, metadata.ErrInvalidISBN):
		return fail(InvalidInput, "Invalid ISBN", err)
	case errors.Is(err, metadata.ErrNotFound):
		return fail(NotFound, "No book found for ISBN "+isbn, err)
	default:
		log.Printf("Session: lookup of %s failed: %v", isbn, err)
		return fail(NetworkError, "Could not reach the book catalogue, please try again", err)
	}
}

// SearchAndSaveBook looks the ISBN up and adds the result to the shelf
// unless a book with the same title is already there. Outcomes are also
// reported as notices.
func (s *Session) SearchAndSaveBook(ctx context.Context, isbn string) Result {
	res := s.searchAndSave(ctx, isbn)
	level := NoticeInfo
	if !res.OK() {
		level = NoticeError
	}
	s.notify(level, res.Message)
	return res
}

func (s *Session) searchAndSave(ctx context.Context, isbn string) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	normalized := metadata.NormalizeISBN(isbn)
	if normalized == "" {
		return fail(InvalidInput, "Invalid ISBN", metadata.ErrInvalidISBN)
	}
	defer s.track()()

	found, err := s.lookup.SearchByISBN(ctx, normalized)
	if err != nil {
		return classifyLookup(normalized, err)
	}

	book := bookFromMetadata(found, normalized)
	book.UserID = user.ID

	existing, err := s.store.FindBookByTitle(ctx, user.ID, book.Title)
	if err == nil {
		dup := fail(Duplicate, fmt.Sprintf("%q is already on your shelf", existing.Title), nil)
		dup.Book = existing
		return dup
	}
	if !errors.Is(err, repository.ErrBookNotFound) {
		return classify("search and save", err)
	}

	if err := s.store.SaveBook(ctx, book); err != nil {
		return classify("search and save", err)
	}

	if s.covers != nil && strings.HasPrefix(book.CoverRef, "http") {
		if err := s.covers.EnqueueCoverCache(ctx, book.UserID, book.ID, book.CoverRef); err != nil {
			log.Printf("Session: failed to queue cover for book %d: %v", book.ID, err)
		}
	}

	saved := ok(fmt.Sprintf("%q added to your shelf", book.Title))
	saved.Book = book
	return saved
}

func bookFromMetadata(found *metadata.BookMetadata, isbn string) *entities.Book {
	book := &entities.Book{
		Title:       strings.TrimSpace(found.Title),
		Author:      strings.TrimSpace(found.Author()),
		Description: found.Description,
		ISBN:        isbn,
		CoverRef:    found.CoverURL,
		Status:      entities.BookStatusWantToRead,
		TotalPages:  found.PageCount,
	}
	if book.Title == "" {
		book.Title = UnknownTitle
	}
	if book.Author == "" {
		book.Author = UnknownAuthor
	}
	if book.TotalPages < 0 {
		book.TotalPages = 0
	}
	return book
}
