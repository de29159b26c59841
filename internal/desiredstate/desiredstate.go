// Package desiredstate implements the Desired-State Builder (spec §4.6):
// given a network snapshot and the ID of the server asking for its
// configuration, produce the exact DaemonConfig the reconciler will apply
// to the kernel. Unlike the Config Generator, peers here are never
// collapsed or subtracted against each other — every other server and
// every client is emitted with its own /32, plus whatever explicit
// routes a server advertises, exactly as stored.
package desiredstate

import (
	"fmt"

	"github.com/wirewarden/wirewarden/internal/cidr"
	"github.com/wirewarden/wirewarden/internal/ipalloc"
	"github.com/wirewarden/wirewarden/internal/snapshot"
	"github.com/wirewarden/wirewarden/internal/wiredoc"
)

// ErrServerNotFound is returned by BuildForServer when serverID does not
// name a server present in the snapshot — the caller's token pointed at
// an entry the snapshot read no longer has (a race with deletion within
// the same request).
type ErrServerNotFound struct {
	ServerID string
}

func (e ErrServerNotFound) Error() string {
	return fmt.Sprintf("desiredstate: server %q not present in snapshot", e.ServerID)
}

// BuildForServer renders the DaemonConfig for the server identified by
// serverID within snap. psks holds preshared keys keyed by the opposite
// peer's ID; only entries whose ServerID equals serverID are used, so a
// row scoped to another server (even one naming serverID as its peer) is
// ignored. Callers typically load it with a single query filtered to
// server_id = serverID.
func BuildForServer(snap snapshot.NetworkSnapshot, serverID string, psks []snapshot.PresharedKey) (wiredoc.DaemonConfig, error) {
	network := cidr.New(snap.Network.CIDRBase, snap.Network.Prefix)

	self, ok := findServer(snap.Servers, serverID)
	if !ok {
		return wiredoc.DaemonConfig{}, ErrServerNotFound{ServerID: serverID}
	}

	selfKey, ok := snap.Keys[self.KeyID]
	if !ok {
		return wiredoc.DaemonConfig{}, fmt.Errorf("desiredstate: key %q missing for server %q", self.KeyID, serverID)
	}

	pskByPeer := make(map[string]string, len(psks))
	for _, psk := range psks {
		if psk.ServerID == serverID {
			pskByPeer[psk.PeerID] = psk.Value
		}
	}

	selfIP := ipalloc.Address(network, self.AddressOffset)

	cfg := wiredoc.DaemonConfig{
		Server: wiredoc.ServerInfo{
			ID:         self.ID,
			Name:       self.Name,
			PrivateKey: selfKey.PrivateKey,
			PublicKey:  selfKey.PublicKey,
			Address:    fmt.Sprintf("%s/%d", selfIP, snap.Network.Prefix),
			ListenPort: self.EndpointPort,
		},
		Network: wiredoc.NetworkInfo{
			ID:                  snap.Network.ID,
			Name:                snap.Network.Name,
			CIDR:                network.String(),
			PersistentKeepalive: snap.Network.PersistentKeepaliveSeconds,
		},
	}

	for _, other := range snap.Servers {
		if other.ID == serverID || !other.HasEndpoint() {
			continue
		}
		key, ok := snap.Keys[other.KeyID]
		if !ok {
			continue
		}
		otherIP := ipalloc.Address(network, other.AddressOffset)
		allowed := []string{fmt.Sprintf("%s/32", otherIP)}
		for _, route := range snap.RoutesByServer[other.ID] {
			allowed = append(allowed, route.CIDR)
		}
		endpoint := fmt.Sprintf("%s:%d", other.EndpointHost, other.EndpointPort)
		cfg.Peers = append(cfg.Peers, peerFor(key.PublicKey, allowed, &endpoint, pskByPeer[other.ID]))
	}

	for _, client := range snap.Clients {
		key, ok := snap.Keys[client.KeyID]
		if !ok {
			continue
		}
		clientIP := ipalloc.Address(network, client.AddressOffset)
		allowed := []string{fmt.Sprintf("%s/32", clientIP)}
		cfg.Peers = append(cfg.Peers, peerFor(key.PublicKey, allowed, nil, pskByPeer[client.ID]))
	}

	return cfg, nil
}

func findServer(servers []snapshot.Server, id string) (snapshot.Server, bool) {
	for _, s := range servers {
		if s.ID == id {
			return s, true
		}
	}
	return snapshot.Server{}, false
}

func peerFor(publicKey string, allowedIPs []string, endpoint *string, psk string) wiredoc.Peer {
	p := wiredoc.Peer{
		PublicKey:  publicKey,
		AllowedIPs: allowedIPs,
		Endpoint:   endpoint,
	}
	if psk != "" {
		p.PresharedKey = &psk
	}
	return p
}
