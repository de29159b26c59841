package store

import "errors"

// Sentinel errors every store method maps onto. internal/httpapi's error
// translator dispatches on these with errors.Is, the way the teacher's
// daemon API dispatches platform errors onto gRPC status codes.
var (
	// ErrNotFound means the named row does not exist (or was already
	// deleted) within the scope the caller asked for.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict means the write would violate a uniqueness constraint —
	// a duplicate network name, server/client name within a network, or
	// address offset.
	ErrConflict = errors.New("store: conflict")

	// ErrNetworkFull is what internal/ipalloc.ErrNetworkFull is translated
	// to: the network's CIDR has no free address offset left for a new
	// server or client.
	ErrNetworkFull = errors.New("store: network has no free addresses")

	// ErrInvalidInput means the caller supplied a value that fails
	// validation before any row is touched (malformed CIDR, bad DNS
	// entry, negative port, etc).
	ErrInvalidInput = errors.New("store: invalid input")
)
