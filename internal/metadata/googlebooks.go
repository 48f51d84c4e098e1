package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"

// GoogleBooksClient queries the Google Books volumes endpoint.
type GoogleBooksClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	rateLimiter *rateLimiter
}

func NewGoogleBooksClient(opts ClientOptions) *GoogleBooksClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGoogleBooksURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &GoogleBooksClient{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		rateLimiter: newRateLimiter(opts.MinInterval),
	}
}

func (c *GoogleBooksClient) Name() string { return "google" }

// SearchByISBN runs a "isbn:<code>" query and reads only the first item.
func (c *GoogleBooksClient) SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", "isbn:"+isbn)
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books: unexpected status: %d", resp.StatusCode)
	}

	var volumes googleVolumes
	if err := json.NewDecoder(resp.Body).Decode(&volumes); err != nil {
		return nil, fmt.Errorf("google books: decode response: %w", err)
	}
	if len(volumes.Items) == 0 {
		return nil, fmt.Errorf("google books: %w: %s", ErrNotFound, isbn)
	}

	return convertVolumeInfo(&volumes.Items[0].VolumeInfo, isbn), nil
}

func convertVolumeInfo(info *googleVolumeInfo, isbn string) *BookMetadata {
	metadata := &BookMetadata{
		Title:           strings.TrimSpace(info.Title),
		ISBN:            isbn,
		Description:     info.Description,
		PageCount:       info.PageCount,
		Publisher:       info.Publisher,
		PublicationYear: extractYear(info.PublishedDate),
		Source:          "google",
	}
	for _, author := range info.Authors {
		if author = strings.TrimSpace(author); author != "" {
			metadata.Authors = append(metadata.Authors, author)
		}
	}
	if info.ImageLinks != nil {
		cover := info.ImageLinks.Thumbnail
		if cover == "" {
			cover = info.ImageLinks.SmallThumbnail
		}
		metadata.CoverURL = secureURL(cover)
	}
	return metadata
}

// secureURL upgrades plain http links, which Google still returns for thumbnails.
func secureURL(raw string) string {
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// Google Books API response types (internal)

type googleVolumes struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type googleVolumeInfo struct {
	Title         string           `json:"title"`
	Authors       []string         `json:"authors"`
	Publisher     string           `json:"publisher"`
	PublishedDate string           `json:"publishedDate"`
	Description   string           `json:"description"`
	PageCount     int              `json:"pageCount"`
	ImageLinks    *googleImageLink `json:"imageLinks"`
}

type googleImageLink struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}
