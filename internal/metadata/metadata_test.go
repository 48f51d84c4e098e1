package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookkeeper/internal/config"
)

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"978-0-13-468599-1", "9780134685991"},
		{"0-13-468599-6", "0134685996"},
		{"978 0 13 468599 1", "9780134685991"},
		{"9780134685991", "9780134685991"},
		{"0134685996", "0134685996"},
		{"080442957x", "080442957X"},
		{"X804429579", ""},
		{"97801346859X", ""},
		{"123", ""},            // Too short
		{"12345678901234", ""}, // Too long
		{"", ""},
		{"  978-0-13-468599-1  ", "9780134685991"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeISBN(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeISBN(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"2020", 2020},
		{"2004-10", 2004},
		{"January 15, 2019", 2019},
		{"Jan 15, 2019", 2019},
		{"2021-06-15", 2021},
		{"January 2018", 2018},
		{"Published in 1999", 1999},
		{"", 0},
		{"no year here", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := extractYear(tt.input)
			if result != tt.expected {
				t.Errorf("extractYear(%q) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, rl.wait(ctx))
	require.NoError(t, rl.wait(ctx))
	elapsed := time.Since(start)

	// Second call should have waited at least 50ms
	if elapsed < 50*time.Millisecond {
		t.Errorf("rate limiter did not wait: elapsed=%v", elapsed)
	}
}

func TestRateLimiter_Cancelled(t *testing.T) {
	rl := newRateLimiter(time.Hour)
	require.NoError(t, rl.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.wait(ctx), context.Canceled)
}

type stubProvider struct {
	name   string
	result *BookMetadata
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	s.calls++
	return s.result, s.err
}

func TestChain_FirstHitWins(t *testing.T) {
	first := &stubProvider{name: "a", result: &BookMetadata{Title: "Dune"}}
	second := &stubProvider{name: "b", result: &BookMetadata{Title: "Other"}}

	result, err := NewChain(first, second).SearchByISBN(context.Background(), "9780441172719")

	require.NoError(t, err)
	assert.Equal(t, "Dune", result.Title)
	assert.Equal(t, 0, second.calls)
}

func TestChain_FallsBack(t *testing.T) {
	first := &stubProvider{name: "a", err: ErrNotFound}
	second := &stubProvider{name: "b", result: &BookMetadata{Title: "Dune"}}

	result, err := NewChain(first, second).SearchByISBN(context.Background(), "9780441172719")

	require.NoError(t, err)
	assert.Equal(t, "Dune", result.Title)
	assert.Equal(t, 1, first.calls)
}

func TestChain_AllNotFound(t *testing.T) {
	chain := NewChain(
		&stubProvider{name: "a", err: ErrNotFound},
		&stubProvider{name: "b", err: ErrNotFound},
	)

	_, err := chain.SearchByISBN(context.Background(), "9780441172719")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChain_TransportErrorWins(t *testing.T) {
	network := errors.New("connection refused")
	chain := NewChain(
		&stubProvider{name: "a", err: network},
		&stubProvider{name: "b", err: ErrNotFound},
	)

	_, err := chain.SearchByISBN(context.Background(), "9780441172719")
	assert.ErrorIs(t, err, network)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestChain_InvalidISBN(t *testing.T) {
	provider := &stubProvider{name: "a"}
	_, err := NewChain(provider).SearchByISBN(context.Background(), "abc")

	assert.ErrorIs(t, err, ErrInvalidISBN)
	assert.Equal(t, 0, provider.calls)
}

func TestNewChainFromConfig(t *testing.T) {
	chain, err := NewChainFromConfig(config.Metadata{Providers: []string{"openlibrary", "google"}})
	require.NoError(t, err)
	assert.Equal(t, "openlibrary,google", chain.Name())

	_, err = NewChainFromConfig(config.Metadata{Providers: []string{"amazon"}})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestBookMetadata_Author(t *testing.T) {
	m := &BookMetadata{Authors: []string{"Terry Pratchett", "Neil Gaiman"}}
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", m.Author())
	assert.Equal(t, "", (&BookMetadata{}).Author())
}
