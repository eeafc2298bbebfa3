// Package config loads configuration for the shortcode commands from the
// environment and an optional .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment variable prefixes. Unprefixed names are accepted as a fallback.
const (
	LoginPrefix = "SHORTCODE"
	MockPrefix  = "MOCK"

	// AppName names the per-user configuration directory
	AppName = "shortcode-oauth"
)

// ErrMissingClientID is returned when no client ID was configured
var ErrMissingClientID = errors.New("client ID is required (set SHORTCODE_CLIENT_ID or --client-id)")

// Login holds configuration of the shortcode-login command
type Login struct {
	ClientID     string        `envconfig:"CLIENT_ID"`
	ClientSecret string        `envconfig:"CLIENT_SECRET"`
	Scopes       []string      `envconfig:"SCOPES"`
	Host         string        `envconfig:"HOST" default:"https://mixer.com/api/v1/"`
	VerifyURL    string        `envconfig:"VERIFY_URL" default:"https://mixer.com/go"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	TokenDir     string        `envconfig:"TOKEN_DIR"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"warn"`
	LogPretty    bool          `envconfig:"LOG_PRETTY" default:"true"`
}

// Validate checks the settings that have no usable default
func (c Login) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Mock holds configuration of the shortcode-mock server
type Mock struct {
	Port              int               `envconfig:"PORT" default:"8080"`
	BasePath          string            `envconfig:"BASE_PATH" default:"/api/v1"`
	CodeExpiry        time.Duration     `envconfig:"CODE_EXPIRY" default:"2m"`
	TokenExpiry       time.Duration     `envconfig:"TOKEN_EXPIRY" default:"6h"`
	Clients           map[string]string `envconfig:"CLIENTS"`
	RedisURL          string            `envconfig:"REDIS_URL"`
	CSRFExpiry        time.Duration     `envconfig:"CSRF_EXPIRY" default:"15m"`
	LogLevel          string            `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty         bool              `envconfig:"LOG_PRETTY" default:"false"`
	ReadHeaderTimeout time.Duration     `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration     `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LoadLogin reads Login from the environment after loading envFiles, or
// .env in the working directory when none are given. Missing files are ignored.
func LoadLogin(envFiles ...string) (Login, error) {
	loadEnvFiles(envFiles)

	var cfg Login
	if err := envconfig.Process(LoginPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("loading login configuration: %w", err)
	}
	if cfg.TokenDir == "" {
		cfg.TokenDir = DefaultTokenDir()
	}
	return cfg, nil
}

// LoadMock reads Mock from the environment after loading envFiles
func LoadMock(envFiles ...string) (Mock, error) {
	loadEnvFiles(envFiles)

	var cfg Mock
	if err := envconfig.Process(MockPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("loading mock configuration: %w", err)
	}
	return cfg, nil
}

// DefaultTokenDir returns the per-user directory for stored tokens
func DefaultTokenDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(base, AppName)
}

func loadEnvFiles(files []string) {
	// Existing variables win over file contents; a missing file is fine
	_ = godotenv.Load(files...)
}
