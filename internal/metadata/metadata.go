// Package metadata looks books up by ISBN in remote catalogues.
//
// Providers are stateless request/response clients: no retries and no
// caching. A Chain tries several providers in order.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/bookkeeper/internal/config"
)

const userAgent = "Bookkeeper/1.0 (https://github.com/mrlokans/bookkeeper)"

var (
	ErrInvalidISBN     = errors.New("invalid ISBN")
	ErrNotFound        = errors.New("book not found")
	ErrUnknownProvider = errors.New("unknown metadata provider")
)

// BookMetadata is the subset of catalogue data the shelf cares about.
// Every field is optional.
type BookMetadata struct {
	Title           string   `json:"title,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	ISBN            string   `json:"isbn,omitempty"`
	Description     string   `json:"description,omitempty"`
	PageCount       int      `json:"page_count,omitempty"`
	CoverURL        string   `json:"cover_url,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PublicationYear int      `json:"publication_year,omitempty"`
	Source          string   `json:"source"`
}

// Author joins all authors for display.
func (m *BookMetadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

// Provider looks a single ISBN up.
type Provider interface {
	Name() string
	SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error)
}

// ClientOptions configures a provider client. Zero values use the provider defaults.
type ClientOptions struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// wait blocks until the next call is allowed or ctx is done.
func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if since := time.Since(r.lastCall); since < r.interval {
		timer := time.NewTimer(r.interval - since)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	r.lastCall = time.Now()
	return nil
}

// NormalizeISBN strips hyphens and spaces. It returns "" unless the result
// is 10 or 13 characters of digits (ISBN-10 may end in X).
func NormalizeISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.ToUpper(isbn)

	if len(isbn) != 10 && len(isbn) != 13 {
		return ""
	}
	for i, r := range isbn {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == 'X' && len(isbn) == 10 && i == 9 {
			continue
		}
		return ""
	}
	return isbn
}

// extractYear tries to extract a 4-digit year from a date string.
func extractYear(dateStr string) int {
	dateStr = strings.TrimSpace(dateStr)
	if len(dateStr) < 4 {
		return 0
	}

	formats := []string{
		"2006",
		"2006-01",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
		"January 2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.Year()
		}
	}

	// Last resort: find 4 consecutive digits
	for i := 0; i <= len(dateStr)-4; i++ {
		if dateStr[i] < '0' || dateStr[i] > '9' {
			continue
		}
		var year int
		if _, err := fmt.Sscanf(dateStr[i:i+4], "%4d", &year); err == nil && year > 1000 && year < 3000 {
			return year
		}
	}
	return 0
}

// Chain queries providers in order and returns the first hit.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

// SearchByISBN returns ErrNotFound only when every provider answered "not
// found". Otherwise the last transport error is returned.
func (c *Chain) SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	if NormalizeISBN(isbn) == "" {
		return nil, ErrInvalidISBN
	}
	if len(c.providers) == 0 {
		return nil, ErrNotFound
	}

	var lastErr error
	for _, provider := range c.providers {
		result, err := provider.SearchByISBN(ctx, isbn)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// NewChainFromConfig builds the provider chain in the configured order.
func NewChainFromConfig(cfg config.Metadata) (*Chain, error) {
	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "google", "googlebooks":
			providers = append(providers, NewGoogleBooksClient(ClientOptions{
				BaseURL:     cfg.GoogleBooksURL,
				APIKey:      cfg.GoogleBooksAPIKey,
				Timeout:     cfg.RequestTimeout,
				MinInterval: cfg.MinRequestInterval,
			}))
		case "openlibrary":
			providers = append(providers, NewOpenLibraryClient(ClientOptions{
				BaseURL:     cfg.OpenLibraryURL,
				Timeout:     cfg.RequestTimeout,
				MinInterval: cfg.MinRequestInterval,
			}))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}
	return NewChain(providers...), nil
}
