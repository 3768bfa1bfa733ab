package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects below a directory served over HTTP.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory objects are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes obj to disk and returns its public URL.
func (s *LocalStore) Put(_ context.Context, obj Object) (string, error) {
	key, target, err := s.path(obj.Key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(target, obj.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing media file: %w", err)
	}
	return s.baseURL + "/" + filepath.ToSlash(key), nil
}

// Delete removes the file stored under key.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	_, target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing media file: %w", err)
	}
	return nil
}

// path confines key to the store directory.
func (s *LocalStore) path(key string) (string, string, error) {
	key = filepath.Clean("/" + key)[1:]
	if key == "" {
		return "", "", fmt.Errorf("empty object key")
	}
	return key, filepath.Join(s.dir, filepath.FromSlash(key)), nil
}
