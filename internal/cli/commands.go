package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/entrypoint"
	"github.com/mrlokans/bookkeeper/internal/session"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(opts.config(), opts.version)
		},
	}
}

func newLookupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <isbn>",
		Short: "Look up catalogue data for an ISBN without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				found, res := app.Session.LookupISBN(ctx, args[0])
				if !res.OK() {
					return resultError(res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:     %s\n", found.Title)
				fmt.Fprintf(out, "Authors:   %s\n", found.Author())
				fmt.Fprintf(out, "ISBN:      %s\n", found.ISBN)
				if found.PageCount > 0 {
					fmt.Fprintf(out, "Pages:     %d\n", found.PageCount)
				}
				if found.Publisher != "" {
					fmt.Fprintf(out, "Publisher: %s\n", found.Publisher)
				}
				if found.PublicationYear > 0 {
					fmt.Fprintf(out, "Year:      %d\n", found.PublicationYear)
				}
				if found.CoverURL != "" {
					fmt.Fprintf(out, "Cover:     %s\n", found.CoverURL)
				}
				fmt.Fprintf(out, "Source:    %s\n", found.Source)
				return nil
			})
		},
	}
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, fmt.Sprintf("Enter password for %s: ", email))
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				return report(cmd, app.Session.Register(ctx, name, email, password))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in; the session is remembered until logout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				return report(cmd, app.Session.Login(ctx, email, password))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				return report(cmd, app.Session.Logout(ctx))
			})
		},
	}
}

func newWhoAmICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				user := app.Session.CurrentUser()
				if user == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
}

func newBooksCommand(opts *rootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the books on your shelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				books, res := app.Session.ListBooks(ctx, status)
				if !res.OK() {
					return resultError(res)
				}
				printBooks(cmd, books)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show books with this status (want_to_read, reading, read)")
	return cmd
}

func printBooks(cmd *cobra.Command, books []entities.Book) {
	out := cmd.OutOrStdout()
	if len(books) == 0 {
		fmt.Fprintln(out, "Your shelf is empty")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tSTATUS\tPROGRESS")
	for _, book := range books {
		progress := "-"
		if book.TotalPages > 0 {
			progress = fmt.Sprintf("%d/%d", book.CurrentPage, book.TotalPages)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", book.ID, book.Title, book.Author, book.Status.Label(), progress)
	}
	w.Flush()
}

func newAddISBNCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-isbn <isbn>",
		Short: "Look up an ISBN and add the book to your shelf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				return report(cmd, app.Session.SearchAndSaveBook(ctx, args[0]))
			})
		},
	}
}

func newThemeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				if len(args) == 1 {
					var res session.Result
					switch strings.ToLower(args[0]) {
					case "dark":
						res = app.Session.SetDarkTheme(true)
					case "light":
						res = app.Session.SetDarkTheme(false)
					case "toggle":
						res = app.Session.ToggleTheme()
					default:
						return fmt.Errorf("unknown theme %q, use dark, light or toggle", args[0])
					}
					if !res.OK() {
						return resultError(res)
					}
				}
				theme := "light"
				if app.Session.IsDarkTheme() {
					theme = "dark"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Theme: %s\n", theme)
				return nil
			})
		},
	}
}

// report prints the message of a successful command or turns a failed one into an error.
func report(cmd *cobra.Command, res session.Result) error {
	if !res.OK() {
		return resultError(res)
	}
	if res.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}
