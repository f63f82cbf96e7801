package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("storage: object not found")
	ErrInvalidPath = errors.New("storage: invalid object path")
)

// FileStorage keeps finalized payroll artifacts.
type FileStorage interface {
	// Upload stores the content under path and returns the stored key.
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// Download returns ErrNotFound for a missing object.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	Exists(ctx context.Context, path string) (bool, error)
}
