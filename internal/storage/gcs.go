package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/hugh/bizops/pkg/config"
)

// GCS stores files in a Google Cloud Storage bucket.
type GCS struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

func NewGCS(ctx context.Context, cfg *config.StorageConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs storage requires a bucket")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &GCS{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

func (g *GCS) Put(ctx context.Context, namespace string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	name := objectName(namespace, fh.Filename)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = fh.Header.Get("Content-Type")

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("uploading to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gcs upload: %w", err)
	}
	return name, nil
}

func (g *GCS) Delete(ctx context.Context, relPath string) error {
	name, err := cleanPath(relPath)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("deleting from gcs: %w", err)
	}
	return nil
}

func (g *GCS) URL(relPath string) string {
	return joinURL(g.baseURL, relPath)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
