package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/bookkeeper/internal/config"
)

const duneVolumes = `{"totalItems":1,"items":[{"volumeInfo":{
	"title":"Dune","authors":["Frank Herbert"],"publisher":"Ace",
	"publishedDate":"1990-09-01","pageCount":412}}]}`

func fakeGoogleBooks(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("q"), "9780441172719") {
			fmt.Fprint(w, duneVolumes)
			return
		}
		fmt.Fprint(w, `{"totalItems":0}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLoader(t *testing.T) ConfigLoader {
	t.Helper()
	dir := t.TempDir()
	metadataURL := fakeGoogleBooks(t).URL
	return func() *config.Config {
		cfg := &config.Config{}
		cfg.Database.Path = filepath.Join(dir, "shelf.db")
		cfg.Database.SchemaPolicy = config.SchemaPolicyMigrate
		cfg.Metadata.Providers = []string{"google"}
		cfg.Metadata.GoogleBooksURL = metadataURL
		cfg.Metadata.RequestTimeout = 2 * time.Second
		cfg.Covers.Dir = filepath.Join(dir, "covers")
		cfg.Auth.BcryptCost = bcrypt.MinCost
		cfg.Auth.LoginMaxAttempts = 5
		cfg.Auth.LoginWindow = time.Minute
		cfg.Auth.LoginLockout = time.Minute
		return cfg
	}
}

// run executes one command line the way main does, with a fresh command tree.
func run(t *testing.T, loader ConfigLoader, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test", loader)
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestRegisterLoginLogout(t *testing.T) {
	loader := testLoader(t)

	out, err := run(t, loader, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, err = run(t, loader, "secret123\n", "register", "--name", "Ann", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created")

	out, err = run(t, loader, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann <ann@example.com>")

	out, err = run(t, loader, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = run(t, loader, "wrong-pass\n", "login", "--email", "ann@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "invalid_credentials")

	out, err = run(t, loader, "secret123", "login", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Ann")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	loader := testLoader(t)

	_, err := run(t, loader, "secret123\n", "register", "--name", "Ann", "--email", "ann@example.com")
	require.NoError(t, err)
	_, err = run(t, loader, "", "logout")
	require.NoError(t, err)

	_, err = run(t, loader, "other-pass\n", "register", "--name", "Ann 2", "--email", "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate_email")
}

func TestRegister_RequiresFlags(t *testing.T) {
	_, err := run(t, testLoader(t), "secret123\n", "register", "--name", "Ann")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestBooksAndAddISBN(t *testing.T) {
	loader := testLoader(t)

	_, err := run(t, loader, "", "books")
	require.Error(t, err, "listing needs a user")
	assert.Contains(t, err.Error(), "not_logged_in")

	_, err = run(t, loader, "secret123\n", "register", "--name", "Ann", "--email", "ann@example.com")
	require.NoError(t, err)

	out, err := run(t, loader, "", "books")
	require.NoError(t, err)
	assert.Contains(t, out, "Your shelf is empty")

	out, err = run(t, loader, "", "add-isbn", "978-0-441-17271-9")
	require.NoError(t, err)
	assert.Contains(t, out, `"Dune" added to your shelf`)

	_, err = run(t, loader, "", "add-isbn", "9780441172719")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = run(t, loader, "", "add-isbn", "not-an-isbn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_input")

	_, err = run(t, loader, "", "add-isbn", "9780000000002")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")

	out, err = run(t, loader, "", "books")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Frank Herbert")
	assert.Contains(t, out, "0/412")

	out, err = run(t, loader, "", "books", "--status", "read")
	require.NoError(t, err)
	assert.Contains(t, out, "Your shelf is empty")
}

func TestLookup(t *testing.T) {
	loader := testLoader(t)

	out, err := run(t, loader, "", "lookup", "9780441172719")
	require.NoError(t, err)
	assert.Contains(t, out, "Title:     Dune")
	assert.Contains(t, out, "Authors:   Frank Herbert")
	assert.Contains(t, out, "Pages:     412")
	assert.Contains(t, out, "Publisher: Ace")
	assert.Contains(t, out, "Year:      1990")

	_, err = run(t, loader, "", "lookup")
	require.Error(t, err)
}

func TestTheme(t *testing.T) {
	loader := testLoader(t)

	out, err := run(t, loader, "", "theme")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: light")

	out, err = run(t, loader, "", "theme", "dark")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: dark")

	out, err = run(t, loader, "", "theme")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: dark", "theme persists between runs")

	out, err = run(t, loader, "", "theme", "toggle")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: light")

	_, err = run(t, loader, "", "theme", "purple")
	require.Error(t, err)
}

func TestFlagOverrides(t *testing.T) {
	loader := testLoader(t)
	opts := &rootOptions{loadConfig: loader, dbPath: "/tmp/other.db", coversDir: "/tmp/other-covers"}

	cfg := opts.config()
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/other-covers", cfg.Covers.Dir)
}
