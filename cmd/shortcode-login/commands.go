package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain tokens by entering a shortcode on the companion page",
		Long: help(`
			Request a shortcode and wait until it is entered on the companion
			page. Expired codes are replaced automatically. The resulting tokens
			are stored under the selected profile.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.errOut))
			s.Suffix = " Waiting for authorization..."
			defer s.Stop()

			tokens, err := a.client.Grant(ctx, func(code *shortcode.Shortcode) {
				s.Stop()
				a.showCode(code)
				s.Start()
			})
			s.Stop()
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if err := a.save(ctx, tokens); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Logged in, access token valid until %s\n",
				text.FgGreen.Sprint("✓"), tokens.ExpiresAt().Local().Format(time.RFC1123))
			return nil
		},
	}
}

// printCode tells the user where to enter code
func (a *app) printCode(code *shortcode.Shortcode) {
	fmt.Fprintf(a.out, "Go to %s and enter code %s (valid for %s)\n",
		a.cfg.VerifyURL, text.Bold.Sprint(code.Code()), code.ExpiresIn())
	a.logger.Debug().Str("handle", code.Handle()).Time("expires_at", code.ExpiresAt()).Msg("shortcode issued")
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for new tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			tokens, err := a.load(ctx)
			if err != nil {
				return err
			}
			next, err := a.client.Refresh(ctx, tokens)
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			if err := a.save(ctx, next); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Refreshed, access token valid until %s\n", next.ExpiresAt().Local().Format(time.RFC1123))
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored tokens of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			state := text.FgGreen.Sprint("valid")
			if tokens.Expired() {
				state = text.FgRed.Sprint("expired")
			}
			scopes := "all requested"
			if !tokens.GrantedAll(a.cfg.Scopes...) {
				scopes = text.FgYellow.Sprint("missing some requested scopes")
			}
			refresh := "no"
			if tokens.RefreshToken() != "" {
				refresh = "yes"
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})
			t.AppendRows([]table.Row{
				{"Profile", a.profile},
				{"Client", a.cfg.ClientID},
				{"Store", a.storeName},
				{"Access token", state},
				{"Expires", tokens.ExpiresAt().Local().Format(time.RFC1123)},
				{"Scopes", strings.Join(tokens.Scopes(), " ")},
				{"Granted", scopes},
				{"Refresh token", refresh},
			})
			t.Render()
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var header bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it first if needed",
		Long: help(`
			Print the access token of the profile. An expired token is refreshed
			and the new tokens are stored before printing. With --header the
			complete Authorization header is printed instead.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			tokens, err := a.load(ctx)
			if err != nil {
				return err
			}

			var saveErr error
			src := a.client.TokenSource(ctx, tokens, func(next *shortcode.TokenSet) {
				saveErr = a.save(ctx, next)
			})
			current, err := src.TokenSet()
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			if saveErr != nil {
				return saveErr
			}

			if header {
				fmt.Fprintf(a.out, "Authorization: %s\n", current.AuthorizationHeader().Get("Authorization"))
				return nil
			}
			fmt.Fprintln(a.out, current.AccessToken())
			return nil
		},
	}
	cmd.Flags().BoolVar(&header, "header", false, "print the Authorization header")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Delete(cmd.Context(), a.key()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed tokens of profile %s\n", a.profile)
			return nil
		},
	}
}
