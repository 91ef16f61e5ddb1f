// Package storage keeps uploaded files outside the database. Callers only ever
// hold the relative path returned by Put.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/bizops/pkg/config"
)

var ErrInvalidPath = errors.New("invalid storage path")

// Store is the blob store used for form answers, thumbnails and avatars.
type Store interface {
	// Put writes the upload under namespace and returns its relative path.
	Put(ctx context.Context, namespace string, fh *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, relPath string) error
	// URL turns a relative path into an absolute retrieval URL.
	URL(relPath string) string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.BaseURL)
	case "s3":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func objectName(namespace, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(strings.Trim(namespace, "/"), uuid.NewString()+ext)
}

func cleanPath(relPath string) (string, error) {
	p := path.Clean("/" + relPath)
	if p == "/" {
		return "", ErrInvalidPath
	}
	return strings.TrimPrefix(p, "/"), nil
}

func joinURL(base, relPath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(relPath, "/")
}
