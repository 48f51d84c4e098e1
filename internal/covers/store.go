// Package covers keeps app-private copies of cover images.
//
// A cover reference stored on a book is either a remote URL or the absolute
// path of a file in the store directory. Files are named with random UUIDs,
// so a reference never collides with another book's cover.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxCoverBytes bounds a single cover file.
	MaxCoverBytes = 10 << 20
	tmpPrefix     = ".tmp-"
)

var (
	ErrTooLarge      = errors.New("cover image too large")
	ErrNotOwned      = errors.New("cover is not stored locally")
	ErrNotAnImage    = errors.New("response is not an image")
	allowedExtension = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	contentTypeExt   = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

// Store handles local copies of book cover images.
type Store struct {
	dir        string
	httpClient *http.Client
}

// NewStore creates the store directory if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve covers dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create covers dir: %w", err)
	}

	return &Store{
		dir: abs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Dir returns the absolute store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Import copies r into the store and returns the new file's absolute path.
func (s *Store) Import(r io.Reader, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !allowedExtension[ext] {
		ext = ".jpg"
	}

	tmpFile, err := os.CreateTemp(s.dir, tmpPrefix)
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(r, MaxCoverBytes+1))
	if err != nil {
		return "", err
	}
	if written > MaxCoverBytes {
		return "", ErrTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	return path, nil
}

// Fetch downloads a remote cover into the store.
func (s *Store) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Bookkeeper/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch cover: status %d", resp.StatusCode)
	}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	ext, known := contentTypeExt[contentType]
	if !known {
		if contentType != "" && !strings.HasPrefix(contentType, "image/") {
			return "", fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
		}
		ext = filepath.Ext(req.URL.Path)
	}

	return s.Import(resp.Body, ext)
}

// Owns reports whether ref points at a file inside the store.
func (s *Store) Owns(ref string) bool {
	if ref == "" || !filepath.IsAbs(ref) {
		return false
	}
	return filepath.Dir(filepath.Clean(ref)) == s.dir
}

// Remove deletes a stored cover. Missing files are not an error.
func (s *Store) Remove(ref string) error {
	if !s.Owns(ref) {
		return ErrNotOwned
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup deletes every stored file not listed in referenced, plus stale
// temporary files. It returns the number of files removed.
func (s *Store) Cleanup(referenced []string) (int, error) {
	keep := make(map[string]bool, len(referenced))
	for _, ref := range referenced {
		if s.Owns(ref) {
			keep[filepath.Clean(ref)] = true
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if keep[path] {
			continue
		}
		if strings.HasPrefix(entry.Name(), tmpPrefix) {
			// May belong to an import still in progress.
			info, err := entry.Info()
			if err != nil || time.Since(info.ModTime()) < time.Hour {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
