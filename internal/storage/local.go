package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes under root and serves from prefix (e.g. /uploads).
type LocalStorage struct {
	root   string
	prefix string
}

func NewLocalStorage(root, prefix string) *LocalStorage {
	return &LocalStorage{root: root, prefix: "/" + strings.Trim(prefix, "/")}
}

func (s *LocalStorage) Save(ctx context.Context, folder, filename, _ string, body io.Reader) (string, error) {
	key := ObjectKey(folder, filename)
	dst := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.prefix + "/" + key, nil
}

// Delete removes the file behind url. A file that is already gone is not an error.
func (s *LocalStorage) Delete(_ context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.prefix+"/")
	if !ok || strings.Contains(key, "..") {
		return fmt.Errorf("url %q is not managed by local storage", url)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Root is the directory served at the public prefix.
func (s *LocalStorage) Root() string { return s.root }
