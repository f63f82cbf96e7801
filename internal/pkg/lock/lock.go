package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotObtained = errors.New("lock: not obtained")
	ErrNotHeld     = errors.New("lock: not held")
)

type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out expiring, exclusive locks by key.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
