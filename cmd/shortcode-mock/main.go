// Command shortcode-mock runs a local shortcode authorization server for
// development against shortcode-login and the client library
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wrale/shortcode-oauth/internal/config"
	"github.com/wrale/shortcode-oauth/internal/csrf"
	"github.com/wrale/shortcode-oauth/internal/logging"
	"github.com/wrale/shortcode-oauth/internal/mockserver"
)

// Version is set by the build process
var Version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.LoadMock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done, then shuts down gracefully
func run(ctx context.Context, cfg config.Mock, logger zerolog.Logger) error {
	opts := []mockserver.Option{
		mockserver.WithBasePath(cfg.BasePath),
		mockserver.WithCodeExpiry(cfg.CodeExpiry),
		mockserver.WithTokenExpiry(cfg.TokenExpiry),
		mockserver.WithClients(cfg.Clients),
		mockserver.WithCSRFExpiry(cfg.CSRFExpiry),
		mockserver.WithLogger(logger),
		mockserver.WithVersion(Version),
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis URL: %w", err)
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()

		store := csrf.NewRedisStore(client)
		if err := store.CheckHealth(ctx); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		opts = append(opts, mockserver.WithCSRFStore(store))
	}

	srv := mockserver.New(opts...)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Int("port", cfg.Port).
			Str("base_path", srv.BasePath()).
			Str("companion_page", srv.EnterPath()).
			Int("clients", len(cfg.Clients)).
			Msg("mock authorization server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed, closing")
			return httpServer.Close()
		}
		return nil
	})

	return g.Wait()
}
