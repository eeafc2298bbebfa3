package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

// FileStore implements Store with one JSON file per key in a directory.
// Files are readable by the owner only.
type FileStore struct {
	dir string
}

// NewFileStore creates a store in dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the token files
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// CheckHealth verifies the directory exists or can be created
func (s *FileStore) CheckHealth(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("token directory unusable: %w", err)
	}
	return nil
}

// Save writes tokens under key, replacing the file atomically
func (s *FileStore) Save(ctx context.Context, key string, tokens *shortcode.TokenSet) error {
	if key == "" {
		return ErrEmptyKey
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing tokens: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}

// Load reads the set stored under key
func (s *FileStore) Load(ctx context.Context, key string) (*shortcode.TokenSet, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tokens: %w", err)
	}

	var tokens shortcode.TokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("unmarshaling tokens: %w", err)
	}
	return &tokens, nil
}

// Delete removes the file stored under key
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting tokens: %w", err)
	}
	return nil
}
