package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogleClient(url string) *GoogleBooksClient {
	return NewGoogleBooksClient(ClientOptions{BaseURL: url})
}

func TestGoogleBooks_SearchByISBN(t *testing.T) {
	var gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"totalItems": 2,
			"items": [
				{"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"publisher": "Ace",
					"publishedDate": "1990-09-01",
					"description": "Desert planet.",
					"pageCount": 535,
					"imageLinks": {"smallThumbnail": "http://books.google.com/s.jpg", "thumbnail": "http://books.google.com/t.jpg"}
				}},
				{"volumeInfo": {"title": "Second item is ignored"}}
			]
		}`))
	}))
	defer server.Close()

	client := NewGoogleBooksClient(ClientOptions{BaseURL: server.URL, APIKey: "secret"})
	result, err := client.SearchByISBN(context.Background(), "978-0-441-17271-9")

	require.NoError(t, err)
	assert.Equal(t, "isbn:9780441172719", gotQuery)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Dune", result.Title)
	assert.Equal(t, []string{"Frank Herbert"}, result.Authors)
	assert.Equal(t, "Desert planet.", result.Description)
	assert.Equal(t, 535, result.PageCount)
	assert.Equal(t, 1990, result.PublicationYear)
	assert.Equal(t, "https://books.google.com/t.jpg", result.CoverURL)
	assert.Equal(t, "9780441172719", result.ISBN)
	assert.Equal(t, "google", result.Source)
}

func TestGoogleBooks_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 1, "items": [{"volumeInfo": {"imageLinks": {"smallThumbnail": "http://x/s.jpg"}}}]}`))
	}))
	defer server.Close()

	result, err := newTestGoogleClient(server.URL).SearchByISBN(context.Background(), "9780441172719")

	require.NoError(t, err)
	assert.Empty(t, result.Title)
	assert.Empty(t, result.Authors)
	assert.Zero(t, result.PageCount)
	assert.Equal(t, "https://x/s.jpg", result.CoverURL)
}

func TestGoogleBooks_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer server.Close()

	_, err := newTestGoogleClient(server.URL).SearchByISBN(context.Background(), "9780441172719")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoogleBooks_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestGoogleClient(server.URL).SearchByISBN(context.Background(), "9780441172719")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGoogleBooks_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	_, err := newTestGoogleClient(server.URL).SearchByISBN(context.Background(), "9780441172719")
	assert.Error(t, err)
}

func TestGoogleBooks_InvalidISBN(t *testing.T) {
	_, err := newTestGoogleClient("http://127.0.0.1:0").SearchByISBN(context.Background(), "invalid")
	assert.ErrorIs(t, err, ErrInvalidISBN)
}

func TestSecureURL(t *testing.T) {
	assert.Equal(t, "https://a/b.jpg", secureURL("http://a/b.jpg"))
	assert.Equal(t, "https://a/b.jpg", secureURL("https://a/b.jpg"))
	assert.Equal(t, "", secureURL(""))
}
