// Command shortcode-login authorizes a machine through the shortcode grant
// and keeps its tokens fresh
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wrale/shortcode-oauth/internal/config"
)

// Version is set by the build process
var Version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.LoadLogin()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitCodeError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = newRootCmd(newApp(cfg, os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()

	os.Exit(exitCode(err))
}
