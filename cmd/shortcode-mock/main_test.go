package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/wrale/shortcode-oauth/internal/config"
)

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := config.Mock{
		Port:              0,
		BasePath:          "/api/v1",
		CodeExpiry:        time.Minute,
		TokenExpiry:       time.Hour,
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRunRejectsBadRedisURL(t *testing.T) {
	cfg := config.Mock{
		RedisURL:        "not-a-url",
		ShutdownTimeout: time.Second,
	}

	err := run(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "parsing redis URL")
}
