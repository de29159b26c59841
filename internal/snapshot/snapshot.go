// Package snapshot holds the plain, storage-agnostic view of a network
// that both the Config Generator and the Desired-State Builder consume.
// internal/store is responsible for assembling one of these from a
// transactionally consistent read; everything downstream is a pure
// function of this data.
package snapshot

// Network is the CIDR, DNS and keepalive configuration shared by every
// server and client on it.
type Network struct {
	ID                         string
	Name                       string
	CIDRBase                   uint32 // network address, host bits zeroed
	Prefix                     uint8
	DNSServers                 []string
	PersistentKeepaliveSeconds int
}

// Key is a decrypted WireGuard keypair: the public key in the clear, and
// the private key decrypted in memory for exactly as long as it takes to
// serve one request.
type Key struct {
	ID         string
	PublicKey  string
	PrivateKey string // base64, plaintext
}

// Server is one gateway peer on the network.
type Server struct {
	ID                      string
	Name                    string
	KeyID                   string
	AddressOffset           uint32
	ForwardsInternetTraffic bool
	EndpointHost            string // empty means ineligible (HasEndpoint reports false)
	EndpointPort            int
}

// HasEndpoint reports server eligibility per spec §4.5/§4.6: a server with
// no endpoint_host is never included in a generated config or peer list.
func (s Server) HasEndpoint() bool {
	return s.EndpointHost != ""
}

// Client is one leaf peer.
type Client struct {
	ID            string
	Name          string
	KeyID         string
	AddressOffset uint32
}

// Route is an extra CIDR a server advertises beyond the network's own
// range.
type Route struct {
	ServerID string
	CIDR     string
}

// NetworkSnapshot is a transactionally consistent view of one network:
// the network itself, its servers ordered by created_at ascending (this
// order is load-bearing for the config generator's first-server-wins
// rule), its clients, the keys referenced by any of them, and per-server
// explicit routes.
type NetworkSnapshot struct {
	Network        Network
	Servers        []Server // created_at ASC
	Clients        []Client
	Keys           map[string]Key      // by key ID
	RoutesByServer map[string][]Route // by server ID
}

// PresharedKey looks up the PSK for a (server, peer) pair, if any. Used
// only by the Desired-State Builder — the Config Generator never
// consults PSKs (see DESIGN.md's Open Question decisions).
type PresharedKey struct {
	ServerID string
	PeerID   string // client or other-server ID
	Value    string // base64
}
