// Package cidr implements IPv4-only CIDR set algebra: containment and
// subtraction. The client config generator, including its full-tunnel
// public-address synthesis, is built on top of it.
package cidr

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// Net4 is an IPv4 network expressed as a base address and prefix length.
// The base is always the network address (host bits zeroed) so that two
// Net4 values with equal fields represent the same range.
type Net4 struct {
	Base   uint32
	Prefix uint8
}

// Parse parses a "A.B.C.D/N" string into a Net4, masking host bits.
func Parse(s string) (Net4, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return Net4{}, fmt.Errorf("parse cidr %q: %w", s, err)
	}
	if ip4 := ip.To4(); ip4 == nil {
		return Net4{}, fmt.Errorf("cidr %q is not IPv4", s)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return Net4{}, fmt.Errorf("cidr %q is not IPv4", s)
	}
	return Net4{Base: ipToU32(ipnet.IP.To4()), Prefix: uint8(ones)}, nil
}

// MustParse parses s, panicking on error. Intended for package-level
// constants and tests, not request-path code.
func MustParse(s string) Net4 {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// New constructs a Net4 from a base address and prefix, masking host bits.
func New(base uint32, prefix uint8) Net4 {
	return Net4{Base: maskedBase(base, prefix), Prefix: prefix}
}

// IP returns the network (base) address as a net.IP.
func (n Net4) IP() net.IP {
	return u32ToIP(n.Base)
}

// String renders the network in "A.B.C.D/N" form.
func (n Net4) String() string {
	return fmt.Sprintf("%s/%d", n.IP(), n.Prefix)
}

// Size returns the number of addresses covered by the network, including
// network and broadcast addresses.
func (n Net4) Size() uint64 {
	if n.Prefix >= 32 {
		return 1
	}
	return uint64(1) << (32 - n.Prefix)
}

// Contains reports whether a fully covers b: a.Prefix <= b.Prefix and a's
// range encloses b's base address.
func Contains(a, b Net4) bool {
	if a.Prefix > b.Prefix {
		return false
	}
	return maskedBase(a.Base, a.Prefix) == maskedBase(b.Base, a.Prefix)
}

// Subtract returns the minimal set of CIDRs whose union is base \ exclude.
//
//   - If base and exclude are disjoint, returns [base] unchanged.
//   - If exclude covers base entirely, returns [].
//   - If base is a /32, it cannot be split further and is fully excluded
//     or fully retained by the two cases above — this branch is otherwise
//     unreachable, but guards against infinite recursion.
//   - Otherwise base is split into its two /prefix+1 halves and the
//     exclusion is recursed into whichever half(s) it overlaps.
func Subtract(base, exclude Net4) []Net4 {
	if !overlaps(base, exclude) {
		return []Net4{base}
	}
	if Contains(exclude, base) {
		return nil
	}
	if base.Prefix >= 32 {
		return nil
	}

	newPrefix := base.Prefix + 1
	halfSize := uint32(1) << (32 - newPrefix)
	left := Net4{Base: base.Base, Prefix: newPrefix}
	right := Net4{Base: base.Base + halfSize, Prefix: newPrefix}

	var out []Net4
	for _, half := range [2]Net4{left, right} {
		switch {
		case Contains(exclude, half):
			// entirely excluded — contributes nothing
		case !overlaps(half, exclude):
			out = append(out, half)
		default:
			out = append(out, Subtract(half, exclude)...)
		}
	}
	return out
}

// SubtractMany folds Subtract over base for each exclude in turn. The
// result is stable under re-ordering of excludes as a set, even though the
// intermediate fragmentation differs depending on evaluation order.
func SubtractMany(base Net4, excludes []Net4) []Net4 {
	remaining := []Net4{base}
	for _, excl := range excludes {
		var next []Net4
		for _, r := range remaining {
			next = append(next, Subtract(r, excl)...)
		}
		remaining = next
	}
	return remaining
}

// RFC1918 are the three private IPv4 ranges carved out of the public
// address space by PublicRanges.
var RFC1918 = []Net4{
	MustParse("10.0.0.0/8"),
	MustParse("172.16.0.0/12"),
	MustParse("192.168.0.0/16"),
}

var allIPv4 = MustParse("0.0.0.0/0")

// PublicRanges returns 0.0.0.0/0 with the RFC1918 private ranges removed —
// the AllowedIPs fragment a full-tunnel internet-forwarding server
// contributes once its own overlay CIDR has already claimed the private
// space.
func PublicRanges() []Net4 {
	return SubtractMany(allIPv4, RFC1918)
}

func overlaps(a, b Net4) bool {
	return Contains(a, b) || Contains(b, a)
}

func maskedBase(base uint32, prefix uint8) uint32 {
	if prefix == 0 {
		return 0
	}
	mask := ^uint32(0) << (32 - prefix)
	return base & mask
}

func ipToU32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

// ToUint32 converts an IPv4 net.IP to its big-endian uint32
// representation, for callers (e.g. internal/configgen) that need to
// build a Net4 from a computed address.
func ToUint32(ip net.IP) uint32 {
	return ipToU32(ip)
}

func u32ToIP(n uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

// JoinStrings renders a slice of Net4 as their string forms joined by
// sep; the config generator calls it with ", " to render wg-quick
// AllowedIPs lines.
func JoinStrings(nets []Net4, sep string) string {
	parts := make([]string, len(nets))
	for i, n := range nets {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
