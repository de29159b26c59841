// Package ipalloc computes peer addresses from (network, offset) pairs and
// finds the first free offset within a network — a pure function of the
// set of offsets already in use.
package ipalloc

import (
	"errors"
	"net"

	"github.com/wirewarden/wirewarden/internal/cidr"
)

// ErrNetworkFull is returned by FirstFreeOffset when no offset remains
// below the network's broadcast address.
var ErrNetworkFull = errors.New("ipalloc: network full")

// Address computes the IPv4 address for offset within network, as
// network.base + offset. Undefined (and unchecked) for prefixes that
// would overflow a uint32 — callers validate IPv4-only and offset bounds
// at the network/allocation boundary, not here.
func Address(network cidr.Net4, offset uint32) net.IP {
	n := network.Base + offset
	b := make(net.IP, 4)
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
	return b
}

// MaxOffset returns the offset of the network's broadcast address; the
// largest offset that still addresses a usable host is one below it.
func MaxOffset(prefix uint8) uint32 {
	if prefix >= 32 {
		return 0
	}
	return (uint32(1) << (32 - prefix)) - 1
}

// FirstFreeOffset returns the smallest integer k >= 1 that does not appear
// in used, where used is sorted ascending. It walks used linearly: while
// the current used offset equals the candidate, both advance; the first
// gap is the answer. This keeps the address space densely packed and
// assignments stable as rows are added and removed.
func FirstFreeOffset(prefix uint8, used []uint32) (uint32, error) {
	max := MaxOffset(prefix)

	candidate := uint32(1)
	for _, offset := range used {
		if offset != candidate {
			break
		}
		candidate++
	}

	if candidate >= max {
		return 0, ErrNetworkFull
	}
	return candidate, nil
}
