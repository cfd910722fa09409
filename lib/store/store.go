// Package store defines the interface for database implementations of the faucet quota store.
package store

import (
	"context"
	"errors"
)

// DB defines required methods for the daily drip quota. A drip is bucketed by the UTC calendar day it was made on.
type DB interface {
	// HasDrippedToday reports whether the address, or the username when informed, already got a drip today.
	HasDrippedToday(ctx context.Context, k DripKey) (bool, error)
	// SaveDrip records a drip made today for the key.
	SaveDrip(ctx context.Context, k DripKey) error
}

// Purger is implemented by the stores that keep drips past their day and need old ones deleted.
type Purger interface {
	// PurgeDrips deletes the drips made before day and returns how many were deleted.
	PurgeDrips(ctx context.Context, day string) (int64, error)
}

// Errors returned
var (
	ErrNoAddr = errors.New("drip key does not contain an address")
)
