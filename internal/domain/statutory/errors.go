package statutory

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("statutory configuration error")
	ErrInvalidInput      = errors.New("invalid statutory input")
	ErrSourceUnavailable = errors.New("statutory table source unavailable")
)

// TableError describes why a table was rejected at load time.
type TableError struct {
	Scheme Scheme
	Reason string
}

func (e *TableError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("statutory tables: %s", e.Reason)
	}
	return fmt.Sprintf("statutory table %s: %s", e.Scheme, e.Reason)
}

func (e *TableError) Unwrap() error {
	return ErrConfiguration
}
