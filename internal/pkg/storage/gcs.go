package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSOptions struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "payroll/".
	Prefix string
	// CredentialsJSON is optional; application default credentials are used
	// when empty.
	CredentialsJSON string
}

type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSStorage(ctx context.Context, opts GCSOptions) (*GCSStorage, error) {
	var clientOpts []option.ClientOption
	if strings.TrimSpace(opts.CredentialsJSON) != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket := client.Bucket(opts.Bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", opts.Bucket, err)
	}

	return &GCSStorage{client: client, bucket: bucket, prefix: opts.Prefix}, nil
}

func (s *GCSStorage) key(path string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" || strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return s.prefix + path, nil
}

func (s *GCSStorage) Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error) {
	key, err := s.key(path)
	if err != nil {
		return "", err
	}

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, file); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (s *GCSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := s.key(path)
	if err != nil {
		return nil, err
	}

	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return r, nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	key, err := s.key(path)
	if err != nil {
		return false, err
	}

	_, err = s.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}
