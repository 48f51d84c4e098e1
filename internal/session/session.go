// Package session is the view-model between the consumers (HTTP API, CLI)
// and the repository. It owns the observable session state and exposes one
// command per user action; every command returns a Result.
//
// # State
//
//   - current user: nil while logged out
//   - loading flag: true while any command is in flight
//   - dark theme flag
//   - books: the current user's shelf, re-subscribed whenever the user changes
//
// # Usage
//
//	s := session.New(repo, lookup, prefs, session.Options{BooksGrace: 5 * time.Second})
//	s.Restore(ctx)
//	res := s.Login(ctx, "ana@x.com", "pw1")
//	for shelf := range s.WatchBooks(ctx) {
//		...
//	}
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/bookkeeper/internal/auth"
	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/metadata"
	"github.com/mrlokans/bookkeeper/internal/repository"
	"github.com/mrlokans/bookkeeper/internal/state"
)

const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// Store is the part of the repository the session depends on.
type Store interface {
	Login(ctx context.Context, email, password string) (*entities.User, error)
	RegisterUser(ctx context.Context, name, email, password string) (*entities.User, error)
	GetUserByID(ctx context.Context, id uint) (*entities.User, error)
	UpdateUser(ctx context.Context, user *entities.User) error
	DeleteUser(ctx context.Context, id uint) error
	ListBooks(ctx context.Context, userID uint) ([]entities.Book, error)
	WatchBooks(ctx context.Context, userID uint) (<-chan []entities.Book, error)
	GetBook(ctx context.Context, userID, bookID uint) (*entities.Book, error)
	FindBookByTitle(ctx context.Context, userID uint, title string) (*entities.Book, error)
	SaveBook(ctx context.Context, book *entities.Book) error
	UpdateBook(ctx context.Context, book *entities.Book) error
	DeleteBook(ctx context.Context, book *entities.Book) error
	ShelfStats(ctx context.Context, userID uint) (map[entities.BookStatus]int64, error)
}

type Lookup interface {
	SearchByISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error)
}

// Preferences persists the session between runs.
type Preferences interface {
	LoggedInUserID() int
	SetLoggedInUserID(id uint) error
	ClearLoggedInUserID() error
	DarkTheme() bool
	SetDarkTheme(enabled bool) error
	Clear() error
}

// CoverCacher copies a remote cover into local storage in the background.
type CoverCacher interface {
	EnqueueCoverCache(ctx context.Context, userID, bookID uint, url string) error
}

type Options struct {
	SplashDelay time.Duration
	BooksGrace  time.Duration
	Notifier    Notifier
	Covers      CoverCacher
}

// Snapshot is a consistent view of the session state.
type Snapshot struct {
	User        *entities.User  `json:"user"`
	Books       []entities.Book `json:"books"`
	IsLoading   bool            `json:"is_loading"`
	IsDarkTheme bool            `json:"is_dark_theme"`
}

type Session struct {
	store    Store
	lookup   Lookup
	prefs    Preferences
	notifier Notifier
	covers   CoverCacher
	opts     Options

	// userMu keeps the current user and the books key in step.
	userMu      sync.Mutex
	currentUser *state.Cell[*entities.User]
	books       *state.Switch[uint, []entities.Book]

	loadingMu sync.Mutex
	inFlight  int
	loading   *state.Cell[bool]

	darkTheme *state.Cell[bool]

	restoreOnce   sync.Once
	restoreResult Result
}

// New builds a session in the loading state. Call Restore once to resolve it.
func New(store Store, lookup Lookup, prefs Preferences, opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(0)
	}

	s := &Session{
		store:       store,
		lookup:      lookup,
		prefs:       prefs,
		notifier:    opts.Notifier,
		covers:      opts.Covers,
		opts:        opts,
		currentUser: state.NewCell[*entities.User](nil),
		inFlight:    1, // released by Restore
		loading:     state.NewCell(true),
		darkTheme:   state.NewCell(false),
	}
	s.books = state.NewSwitch(s.watchShelf, []entities.Book{}, opts.BooksGrace)
	return s
}

func (s *Session) watchShelf(ctx context.Context, userID uint) (<-chan []entities.Book, error) {
	return s.store.WatchBooks(ctx, userID)
}

// Close stops the shared book subscription.
func (s *Session) Close() {
	s.books.Close()
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (s *Session) CurrentUser() *entities.User {
	return cloneUser(s.currentUser.Get())
}

func (s *Session) IsLoading() bool   { return s.loading.Get() }
func (s *Session) IsDarkTheme() bool { return s.darkTheme.Get() }

// Books returns the latest shelf delivered for the current user.
func (s *Session) Books() []entities.Book {
	return s.books.Get()
}

func (s *Session) Snapshot() Snapshot {
	s.userMu.Lock()
	user := cloneUser(s.currentUser.Get())
	shelf := s.books.Get()
	s.userMu.Unlock()

	return Snapshot{
		User:        user,
		Books:       shelf,
		IsLoading:   s.loading.Get(),
		IsDarkTheme: s.darkTheme.Get(),
	}
}

func (s *Session) WatchUser(ctx context.Context) <-chan *entities.User {
	return s.currentUser.Subscribe(ctx)
}

func (s *Session) WatchLoading(ctx context.Context) <-chan bool {
	return s.loading.Subscribe(ctx)
}

func (s *Session) WatchDarkTheme(ctx context.Context) <-chan bool {
	return s.darkTheme.Subscribe(ctx)
}

// WatchBooks follows the shelf of whoever is logged in, switching to the
// empty shelf when nobody is.
func (s *Session) WatchBooks(ctx context.Context) <-chan []entities.Book {
	return s.books.Subscribe(ctx)
}

func (s *Session) setUser(user *entities.User) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	var id uint
	if user != nil {
		id = user.ID
	}
	// Switch the shelf first so no observer can pair the new user with the old shelf.
	s.books.SetKey(id)
	s.currentUser.Set(cloneUser(user))
}

// track marks a command as in flight. The returned func must be deferred.
func (s *Session) track() func() {
	s.loadingMu.Lock()
	s.inFlight++
	s.loading.Set(true)
	s.loadingMu.Unlock()

	return s.release
}

func (s *Session) release() {
	s.loadingMu.Lock()
	defer s.loadingMu.Unlock()
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.loading.Set(s.inFlight > 0)
}

func (s *Session) notify(level NoticeLevel, message string) {
	s.notifier.Notify(Notice{Level: level, Message: message, At: time.Now()})
}

// requireUser returns the current user or a NotLoggedIn result.
func (s *Session) requireUser() (*entities.User, *Result) {
	user := s.CurrentUser()
	if user == nil {
		res := fail(NotLoggedIn, "You need to log in first", nil)
		return nil, &res
	}
	return user, nil
}

// classify turns a store error into a Result.
func classify(op string, err error) Result {
	switch {
	case errors.Is(err, repository.ErrInvalidCredentials):
		return fail(InvalidCredentials, "Invalid email or password", err)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return fail(DuplicateEmail, "This email is already registered", err)
	case errors.Is(err, repository.ErrUserNotFound):
		return fail(NotFound, "User not found", err)
	case errors.Is(err, repository.ErrBookNotFound):
		return fail(NotFound, "Book not found", err)
	case auth.IsValidationError(err):
		return fail(InvalidInput, capitalize(err.Error()), err)
	default:
		log.Printf("Session: %s failed: %v", op, err)
		return fail(StorageError, "Something went wrong, please try again", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func cloneUser(user *entities.User) *entities.User {
	if user == nil {
		return nil
	}
	clone := *user
	return &clone
}
