// Package wiredoc defines the exact JSON shape of the desired-state
// document the daemon fetches from GET /api/daemon/config (spec §6.1).
package wiredoc

// DaemonConfig is the full per-server desired state returned by the
// control plane. The daemon maps this onto a single kernel WireGuard
// interface.
type DaemonConfig struct {
	Server  ServerInfo  `json:"server"`
	Network NetworkInfo `json:"network"`
	Peers   []Peer      `json:"peers"`
}

// ServerInfo describes the calling server's own identity. PrivateKey is
// plaintext, decrypted fresh on every request — it is never written to
// disk by the control plane and the daemon hands it straight to the
// kernel.
type ServerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"` // "A.B.C.D/P"
	ListenPort int    `json:"listen_port"`
}

// NetworkInfo describes the network the server belongs to.
type NetworkInfo struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	CIDR                string `json:"cidr"` // "A.B.C.D/P"
	PersistentKeepalive int    `json:"persistent_keepalive"`
}

// Peer is one other server or client the calling server should configure
// as a WireGuard peer. Endpoint is null for clients (they dial out, never
// accept inbound connections).
type Peer struct {
	PublicKey    string   `json:"public_key"`
	AllowedIPs   []string `json:"allowed_ips"`
	Endpoint     *string  `json:"endpoint"`
	PresharedKey *string  `json:"preshared_key,omitempty"`
}

// Equal reports whether two DaemonConfig values are deeply equivalent —
// used by the reconciler to skip applying configuration that hasn't
// changed since the last successful cycle (spec §4.7 step 4).
func (d DaemonConfig) Equal(other DaemonConfig) bool {
	if d.Server != other.Server || d.Network != other.Network {
		return false
	}
	if len(d.Peers) != len(other.Peers) {
		return false
	}
	for i := range d.Peers {
		if !d.Peers[i].equal(other.Peers[i]) {
			return false
		}
	}
	return true
}

func (p Peer) equal(o Peer) bool {
	if p.PublicKey != o.PublicKey {
		return false
	}
	if (p.Endpoint == nil) != (o.Endpoint == nil) {
		return false
	}
	if p.Endpoint != nil && *p.Endpoint != *o.Endpoint {
		return false
	}
	if (p.PresharedKey == nil) != (o.PresharedKey == nil) {
		return false
	}
	if p.PresharedKey != nil && *p.PresharedKey != *o.PresharedKey {
		return false
	}
	if len(p.AllowedIPs) != len(o.AllowedIPs) {
		return false
	}
	for i := range p.AllowedIPs {
		if p.AllowedIPs[i] != o.AllowedIPs[i] {
			return false
		}
	}
	return true
}
