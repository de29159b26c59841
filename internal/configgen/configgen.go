// Package configgen implements the Config Generator (spec §4.5): given a
// network snapshot and a target client, produce a conflict-free wg-quick
// client configuration. Peers are assigned non-overlapping AllowedIPs
// under a deterministic "first server wins" rule, including full-tunnel
// public-IP synthesis via CIDR subtraction.
//
// This is a pure function of its inputs — no I/O, no clock, no
// randomness — so that the end-to-end scenarios in spec §8 are exact
// unit tests.
package configgen

import (
	"fmt"
	"strings"

	"github.com/wirewarden/wirewarden/internal/cidr"
	"github.com/wirewarden/wirewarden/internal/ipalloc"
	"github.com/wirewarden/wirewarden/internal/snapshot"
)

// Generate renders the wg-quick text configuration for client within
// snapshot, using clientKey as its own keypair and forwardInternet as the
// client's stated preference for DNS and full-tunnel routing.
func Generate(snap snapshot.NetworkSnapshot, client snapshot.Client, clientKey snapshot.Key, forwardInternet bool) string {
	network := cidr.New(snap.Network.CIDRBase, snap.Network.Prefix)
	clientIP := ipalloc.Address(network, client.AddressOffset)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", client.Name)
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "# PublicKey = %s\n", clientKey.PublicKey)
	fmt.Fprintf(&b, "PrivateKey = %s\n", clientKey.PrivateKey)
	fmt.Fprintf(&b, "Address = %s/%d\n", clientIP, snap.Network.Prefix)

	if forwardInternet && len(snap.Network.DNSServers) > 0 {
		fmt.Fprintf(&b, "DNS = %s\n", strings.Join(snap.Network.DNSServers, ", "))
	}

	claimed := make([]cidr.Net4, 0, len(snap.Servers))

	for _, server := range snap.Servers {
		if !server.HasEndpoint() {
			continue
		}

		serverIP := ipalloc.Address(network, server.AddressOffset)
		serverHost := cidr.New(cidr.ToUint32(serverIP), 32)

		candidates := []cidr.Net4{network}
		for _, route := range snap.RoutesByServer[server.ID] {
			if r, err := cidr.Parse(route.CIDR); err == nil {
				candidates = append(candidates, r)
			}
		}
		if forwardInternet && server.ForwardsInternetTraffic {
			candidates = append(candidates, cidr.PublicRanges()...)
		}

		var allowed []cidr.Net4
		for _, candidate := range candidates {
			allowed = append(allowed, cidr.SubtractMany(candidate, claimed)...)
		}

		// The server's own tunnel address must always be reachable, even
		// when an earlier server has already claimed its enclosing
		// range. Containment is checked against this peer's own
		// `allowed` list (not the running `claimed` set) — see
		// DESIGN.md's Open Question decisions for why that distinction matters.
		if !anyContains(allowed, serverHost) {
			allowed = append(allowed, serverHost)
		}

		claimed = append(claimed, allowed...)

		key := snap.Keys[server.KeyID]

		b.WriteString("\n")
		fmt.Fprintf(&b, "# %s\n", server.Name)
		b.WriteString("[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", key.PublicKey)
		fmt.Fprintf(&b, "Endpoint = %s:%d\n", server.EndpointHost, server.EndpointPort)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", cidr.JoinStrings(allowed, ", "))
	}

	return b.String()
}

func anyContains(set []cidr.Net4, n cidr.Net4) bool {
	for _, s := range set {
		if cidr.Contains(s, n) {
			return true
		}
	}
	return false
}

