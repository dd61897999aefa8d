package storage

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrWorkLineNotFound = errors.New("work line not found")
	ErrOfferNotFound    = errors.New("offer not found")

	// ErrLockTimeout means another request holds the order's planning lock.
	// The write path retries before surfacing it.
	ErrLockTimeout = errors.New("planning lock timeout")
)
