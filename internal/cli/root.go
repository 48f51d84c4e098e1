// Package cli implements the bookkeeper command line.
//
// Every command except serve builds a short-lived App, restores the saved
// session, runs one view-model command and exits. Login state therefore
// carries over between invocations the same way it does across app restarts.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookkeeper/internal/config"
	"github.com/mrlokans/bookkeeper/internal/entrypoint"
	"github.com/mrlokans/bookkeeper/internal/session"
)

// ConfigLoader returns the configuration a command runs with.
type ConfigLoader func() *config.Config

type rootOptions struct {
	loadConfig ConfigLoader
	dbPath     string
	coversDir  string
	version    string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string, loadConfig ConfigLoader) *cobra.Command {
	if loadConfig == nil {
		loadConfig = config.NewConfig
	}
	opts := &rootOptions{loadConfig: loadConfig, version: version}

	root := &cobra.Command{
		Use:           "bookkeeper",
		Short:         "Track the books you read",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to the shelf database (overrides DATABASE_PATH)")
	root.PersistentFlags().StringVar(&opts.coversDir, "covers", "", "directory for local cover copies (overrides COVERS_DIR)")

	root.AddCommand(
		newServeCommand(opts),
		newLookupCommand(opts),
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoAmICommand(opts),
		newBooksCommand(opts),
		newAddISBNCommand(opts),
		newThemeCommand(opts),
	)
	return root
}

func (o *rootOptions) config() *config.Config {
	cfg := o.loadConfig()
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.coversDir != "" {
		cfg.Covers.Dir = o.coversDir
	}
	return cfg
}

// withApp runs fn against a freshly restored session. Background workers
// are not started; queued tasks run the next time the server is up.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *entrypoint.App) error) error {
	cfg := o.config()
	cfg.Session.SplashDelay = 0

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer app.Close(ctx)

	if res := app.Session.Restore(ctx); !res.OK() && res.Outcome != session.NotFound {
		return resultError(res)
	}
	return fn(ctx, app)
}

// ErrCommandFailed wraps every failed session command.
var ErrCommandFailed = errors.New("command failed")

func resultError(res session.Result) error {
	return fmt.Errorf("%w: %s (%s)", ErrCommandFailed, res.Message, res.Outcome)
}
