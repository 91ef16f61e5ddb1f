package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Local stores files on the server's disk and serves them itself.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Local{root: root, baseURL: baseURL}, nil
}

func (l *Local) Put(ctx context.Context, namespace string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	rel := objectName(namespace, fh.Filename)
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	dst, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(full)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	return rel, nil
}

func (l *Local) Delete(ctx context.Context, relPath string) error {
	rel, err := cleanPath(relPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Root is the directory files are written under.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) URL(relPath string) string {
	return joinURL(l.baseURL, relPath)
}

// Handler serves stored files; mount it under the path of baseURL.
func (l *Local) Handler() http.Handler {
	return http.FileServer(http.Dir(l.root))
}
