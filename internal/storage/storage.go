// Package storage keeps uploaded files on local disk or in an S3-compatible
// bucket. Callers only ever see the public URL of a stored object.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"servus-backend/internal/config"
)

type FileStorage interface {
	Save(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// New selects the backend named by storage.driver.
func New(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Storage.LocalRoot, cfg.Storage.PublicPrefix), nil
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds "{folder}/{uuid}_{filename}" with the filename reduced to a safe charset.
func ObjectKey(folder, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return path.Join(folder, uuid.NewString()+"_"+name)
}
