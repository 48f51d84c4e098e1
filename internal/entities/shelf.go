package entities

import (
	"strings"
	"time"
)

type BookStatus string

const (
	BookStatusWantToRead BookStatus = "want_to_read"
	BookStatusReading    BookStatus = "reading"
	BookStatusRead       BookStatus = "read"
)

// DefaultCoverColor is the ARGB colour shown when a book has no cover.
const DefaultCoverColor uint32 = 0xFF4E342E

// BookStatuses lists the valid statuses in shelf display order.
var BookStatuses = []BookStatus{BookStatusWantToRead, BookStatusReading, BookStatusRead}

var statusLabels = map[BookStatus]string{
	BookStatusWantToRead: "Want to read",
	BookStatusReading:    "Reading",
	BookStatusRead:       "Read",
}

// Label returns the human readable label for the status.
func (s BookStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s BookStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseBookStatus accepts either the stored value or the label, case-insensitively.
// An empty string maps to BookStatusWantToRead.
func ParseBookStatus(raw string) (BookStatus, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BookStatusWantToRead, true
	}
	normalized := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(raw))
	for _, status := range BookStatuses {
		if string(status) == normalized || strings.EqualFold(status.Label(), raw) {
			return status, true
		}
	}
	return "", false
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Bio          string    `gorm:"type:text" json:"bio,omitempty"`
	PictureRef   string    `gorm:"size:2048" json:"picture_ref,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Book struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Title       string     `gorm:"size:512" json:"title"`
	TitleKey    string     `gorm:"index;size:512" json:"-"` // TitleKeyFor(Title), used for duplicate checks and ordering
	Author      string     `gorm:"size:256" json:"author"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	ISBN        string     `gorm:"index;size:20" json:"isbn,omitempty"`
	CoverRef    string     `gorm:"size:2048" json:"cover_ref,omitempty"` // Local absolute path or remote URL
	CoverColor  uint32     `json:"cover_color"`                          // ARGB fallback when there is no cover
	Status      BookStatus `gorm:"size:20" json:"status"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	Rating      int        `json:"rating,omitempty"` // 0 = unrated, otherwise 1-5
	IsFavorite  bool       `gorm:"default:false" json:"is_favorite"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (Book) TableName() string {
	return "books"
}

// ClampProgress bounds CurrentPage to [0, TotalPages]. When TotalPages is
// unknown (0) only the lower bound applies. Returns true if the page changed.
func (b *Book) ClampProgress() bool {
	page := b.CurrentPage
	if page < 0 {
		page = 0
	}
	if b.TotalPages > 0 && page > b.TotalPages {
		page = b.TotalPages
	}
	changed := page != b.CurrentPage
	b.CurrentPage = page
	return changed
}

// Progress returns the reading progress as a fraction in [0, 1].
func (b *Book) Progress() float64 {
	if b.TotalPages <= 0 {
		return 0
	}
	p := float64(b.CurrentPage) / float64(b.TotalPages)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// TitleKeyFor folds a title for case-insensitive comparison. Unlike SQLite's
// LOWER it folds non-ASCII letters too.
func TitleKeyFor(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Normalize fills defaults and keeps status timestamps consistent with the status.
func (b *Book) Normalize(now time.Time) {
	b.Title = strings.TrimSpace(b.Title)
	b.TitleKey = TitleKeyFor(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if status, ok := ParseBookStatus(string(b.Status)); ok {
		b.Status = status
	}
	if b.CoverRef == "" && b.CoverColor == 0 {
		b.CoverColor = DefaultCoverColor
	}
	if b.TotalPages < 0 {
		b.TotalPages = 0
	}
	if b.Rating < 0 {
		b.Rating = 0
	}
	if b.Rating > 5 {
		b.Rating = 5
	}
	b.ClampProgress()

	switch b.Status {
	case BookStatusWantToRead:
		b.StartedAt = nil
		b.FinishedAt = nil
	case BookStatusReading:
		if b.StartedAt == nil {
			b.StartedAt = &now
		}
		b.FinishedAt = nil
	case BookStatusRead:
		if b.StartedAt == nil {
			b.StartedAt = &now
		}
		if b.FinishedAt == nil {
			b.FinishedAt = &now
		}
	}
}
