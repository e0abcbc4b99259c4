package port

import (
	"context"
	"errors"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type AcceptanceGuard interface {
	// Claim marks a requisition item as accepted, returns false if it was already claimed
	Claim(ctx context.Context, itemID string) (bool, error)

	// Release drops a claim whose acceptance was then refused
	Release(ctx context.Context, itemID string) error
}

type Locker interface {
	// Obtain takes the named lock, returns ErrLockNotObtained when it is held elsewhere
	Obtain(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}
