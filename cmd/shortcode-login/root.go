package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wrale/shortcode-oauth/internal/config"
	"github.com/wrale/shortcode-oauth/internal/logging"
	"github.com/wrale/shortcode-oauth/internal/tokenstore"
	"github.com/wrale/shortcode-oauth/internal/transport"
	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

// Exit codes
const (
	ExitCodeSuccess    = 0
	ExitCodeError      = 1
	ExitCodeAuthFailed = 3
)

// errNotLoggedIn is returned when a command needs stored tokens and there are none
var errNotLoggedIn = errors.New("no stored tokens, run login first")

// app carries what every subcommand needs once flags are parsed
type app struct {
	cfg     config.Login
	profile string
	out     io.Writer
	errOut  io.Writer

	logger     zerolog.Logger
	store      tokenstore.Store
	storeName  string
	closeStore func() error
	client     *shortcode.Client

	// showCode presents a new shortcode to the user
	showCode func(*shortcode.Shortcode)
}

// help trims and dedents a multi-line help text
func help(text string) string {
	return strings.TrimSpace(dedent.Dedent(text))
}

func newApp(cfg config.Login, out, errOut io.Writer) *app {
	a := &app{cfg: cfg, out: out, errOut: errOut}
	a.showCode = a.printCode
	return a
}

func newRootCmd(a *app) *cobra.Command {
	cfg := a.cfg
	cmd := &cobra.Command{
		Use:   "shortcode-login",
		Short: "Authorize this machine with a shortcode",
		Long: help(`
			shortcode-login obtains OAuth tokens without a browser on this machine.

			It shows a short code, you enter it on the companion page from any
			device, and the tokens are stored locally for later use. Settings
			come from SHORTCODE_* environment variables or a .env file; flags
			take precedence.
		`),
		Version:            Version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfg.ClientID, "client-id", cfg.ClientID, "OAuth client ID")
	flags.StringVar(&a.cfg.ClientSecret, "client-secret", cfg.ClientSecret, "OAuth client secret, for confidential clients")
	flags.StringSliceVar(&a.cfg.Scopes, "scopes", cfg.Scopes, "scopes to request, comma separated")
	flags.StringVar(&a.cfg.Host, "host", cfg.Host, "API base address")
	flags.StringVar(&a.cfg.VerifyURL, "verify-url", cfg.VerifyURL, "companion page shown to the user")
	flags.DurationVar(&a.cfg.PollInterval, "poll-interval", cfg.PollInterval, "time between authorization checks")
	flags.StringVar(&a.cfg.TokenDir, "token-dir", cfg.TokenDir, "directory for stored tokens")
	flags.StringVar(&a.cfg.RedisURL, "redis-url", cfg.RedisURL, "store tokens in Redis instead of files")
	flags.DurationVar(&a.cfg.Timeout, "timeout", cfg.Timeout, "timeout of each request to the API")
	flags.StringVar(&a.cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&a.cfg.LogPretty, "log-pretty", cfg.LogPretty, "human readable log output")
	flags.StringVar(&a.profile, "profile", "default", "name under which tokens are stored")

	cmd.AddCommand(
		newLoginCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newTokenCmd(a),
		newLogoutCmd(a),
	)

	return cmd
}

// setup validates configuration and builds the logger, store and client
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(a.errOut, a.cfg.LogLevel, a.cfg.LogPretty)
	if err != nil {
		return err
	}
	a.logger = logger

	if err := a.openStore(cmd.Context()); err != nil {
		return err
	}

	tr := transport.New(a.cfg.Host,
		transport.WithLogger(logger),
		transport.WithTimeout(a.cfg.Timeout),
		transport.WithUserAgent("shortcode-login/"+Version),
	)
	a.client = shortcode.NewClient(a.cfg.ClientID, a.cfg.Scopes,
		shortcode.WithClientSecret(a.cfg.ClientSecret),
		shortcode.WithTransport(tr),
		shortcode.WithPollInterval(a.cfg.PollInterval),
	)
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// openStore selects Redis when a URL is configured, the file store otherwise
func (a *app) openStore(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		a.store = tokenstore.NewFileStore(a.cfg.TokenDir)
		a.storeName = "file " + a.cfg.TokenDir
		a.closeStore = func() error { return nil }
		return nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	store := tokenstore.NewRedisStore(client)
	if err := store.CheckHealth(ctx); err != nil {
		client.Close()
		return err
	}

	a.store = store
	a.storeName = "redis " + opts.Addr
	a.closeStore = client.Close
	return nil
}

// key is the store key of the current client and profile
func (a *app) key() string {
	return a.cfg.ClientID + "/" + a.profile
}

// load returns the stored tokens or errNotLoggedIn
func (a *app) load(ctx context.Context) (*shortcode.TokenSet, error) {
	tokens, err := a.store.Load(ctx, a.key())
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, errNotLoggedIn
	}
	return tokens, nil
}

func (a *app) save(ctx context.Context, tokens *shortcode.TokenSet) error {
	if err := a.store.Save(ctx, a.key(), tokens); err != nil {
		return fmt.Errorf("storing tokens: %w", err)
	}
	a.logger.Debug().Str("profile", a.profile).Time("expires_at", tokens.ExpiresAt()).Msg("tokens stored")
	return nil
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, shortcode.ErrAccessDenied),
		errors.Is(err, shortcode.ErrShortCodeExpired),
		errors.Is(err, errNotLoggedIn):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}
