package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenLibraryURL = "https://openlibrary.org"

// OpenLibraryClient fetches book metadata from the OpenLibrary API.
type OpenLibraryClient struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rateLimiter
}

// NewOpenLibraryClient creates a new OpenLibrary API client with rate limiting.
func NewOpenLibraryClient(opts ClientOptions) *OpenLibraryClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenLibraryURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &OpenLibraryClient{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		rateLimiter: newRateLimiter(opts.MinInterval),
	}
}

func (c *OpenLibraryClient) Name() string { return "openlibrary" }

// SearchByISBN looks up a book edition by its ISBN.
func (c *OpenLibraryClient) SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}

	var book openLibraryBook
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn), &book)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("openlibrary: %w: %s", ErrNotFound, isbn)
	}

	metadata := convertEdition(&book, isbn)

	// Editions only carry author references
	for _, ref := range book.Authors {
		name, err := c.fetchAuthorName(ctx, ref.Key)
		if err != nil {
			break
		}
		if name != "" {
			metadata.Authors = append(metadata.Authors, name)
		}
	}

	return metadata, nil
}

func (c *OpenLibraryClient) fetchAuthorName(ctx context.Context, authorKey string) (string, error) {
	if authorKey == "" {
		return "", fmt.Errorf("empty author key")
	}

	var author struct {
		Name string `json:"name"`
	}
	found, err := c.getJSON(ctx, fmt.Sprintf("%s%s.json", c.baseURL, authorKey), &author)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return author.Name, nil
}

// getJSON decodes a 200 response into out. A 404 yields found=false.
func (c *OpenLibraryClient) getJSON(ctx context.Context, url string, out any) (bool, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func convertEdition(book *openLibraryBook, isbn string) *BookMetadata {
	metadata := &BookMetadata{
		Title:           strings.TrimSpace(book.Title),
		ISBN:            isbn,
		PageCount:       book.NumberOfPages,
		PublicationYear: extractYear(book.PublishDate),
		CoverURL:        fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", isbn),
		Source:          "openlibrary",
	}

	if len(book.Publishers) > 0 {
		metadata.Publisher = book.Publishers[0]
	}

	// Description is either a string or {type, value}
	switch v := book.Description.(type) {
	case string:
		metadata.Description = v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			metadata.Description = val
		}
	}

	return metadata
}

// OpenLibrary API response types (internal)

type openLibraryBook struct {
	Key           string      `json:"key"`
	Title         string      `json:"title"`
	Authors       []authorRef `json:"authors"`
	Publishers    []string    `json:"publishers"`
	PublishDate   string      `json:"publish_date"`
	NumberOfPages int         `json:"number_of_pages"`
	Description   any         `json:"description"`
}

type authorRef struct {
	Key string `json:"key"`
}
