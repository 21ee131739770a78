package backend

import "errors"

// Sentinel errors for pool and upstream operations.
var (
	// ErrDuplicateTarget indicates that a target with the same endpoint
	// is already registered.
	ErrDuplicateTarget = errors.New("duplicate backend target")

	// ErrEmptyPool indicates that the pool has no targets.
	ErrEmptyPool = errors.New("backend pool is empty")

	// ErrNoAvailableBackend indicates that no healthy target is
	// available for selection.
	ErrNoAvailableBackend = errors.New("no available backend")

	// ErrUpstreamTimeout indicates that the upstream did not respond
	// within the configured timeout.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamConnection indicates that the connection to the
	// upstream failed.
	ErrUpstreamConnection = errors.New("upstream connection failed")
)
