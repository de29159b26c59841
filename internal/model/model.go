// Package model defines the gorm-mapped entities of the data model in
// spec §3: Network, WgKey, Server, Client, ServerRoute and PreSharedKey.
package model

import "time"

// Network is a named IPv4 CIDR hosting servers and clients.
type Network struct {
	ID                        string `gorm:"primaryKey"`
	Name                      string `gorm:"uniqueIndex"`
	CIDR                      string // "A.B.C.D/P", network address only
	Prefix                    int
	DNSServers                string // comma-joined ordered list of IPs; empty string means none
	PersistentKeepaliveSecond int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time

	Servers []Server `gorm:"constraint:OnDelete:CASCADE"`
	Clients []Client `gorm:"constraint:OnDelete:CASCADE"`
}

// WgKey is a WireGuard keypair. The private key is never stored in the
// clear: EncryptedPrivateKey and Nonce are the output of
// internal/keyenvelope.Encrypt.
type WgKey struct {
	ID                  string `gorm:"primaryKey"`
	PublicKey           string
	EncryptedPrivateKey []byte
	Nonce               []byte
	CreatedAt           time.Time
}

// Server is a gateway peer: it has an endpoint and is reachable by both
// clients and other servers.
type Server struct {
	ID                      string `gorm:"primaryKey"`
	NetworkID               string `gorm:"index:idx_server_network_name,unique;index:idx_server_network_offset,unique"`
	Name                    string `gorm:"index:idx_server_network_name,unique"`
	KeyID                   string
	APIToken                string `gorm:"uniqueIndex"`
	AddressOffset           uint32 `gorm:"index:idx_server_network_offset,unique"`
	ForwardsInternetTraffic bool
	EndpointHost            *string
	EndpointPort            int
	CreatedAt               time.Time
	UpdatedAt               time.Time

	Key    WgKey         `gorm:"foreignKey:KeyID"`
	Routes []ServerRoute `gorm:"constraint:OnDelete:CASCADE"`
}

// Client is a leaf peer: no endpoint, connects outbound to servers.
type Client struct {
	ID            string `gorm:"primaryKey"`
	NetworkID     string `gorm:"index:idx_client_network_name,unique;index:idx_client_network_offset,unique"`
	Name          string `gorm:"index:idx_client_network_name,unique"`
	KeyID         string
	AddressOffset uint32 `gorm:"index:idx_client_network_offset,unique"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Key WgKey `gorm:"foreignKey:KeyID"`
}

// ServerRoute is an additional range a server advertises to reach an
// external subnet, beyond its network's own CIDR.
type ServerRoute struct {
	ID        string `gorm:"primaryKey"`
	ServerID  string `gorm:"index"`
	RouteCIDR string
	CreatedAt time.Time
}

// PreSharedKey is an optional per-pair PSK layer, scoped to one server's
// view of one peer (another server or a client). It is fetched by the
// desired-state builder but never by the client config generator — see
// DESIGN.md's Open Question decisions on the client/daemon PSK asymmetry.
// PeerKind disambiguates PeerID's table since servers and clients share
// no ID space guarantee.
type PreSharedKey struct {
	ID       string `gorm:"primaryKey"`
	ServerID string `gorm:"index:idx_psk_pair,unique"`
	PeerID   string `gorm:"index:idx_psk_pair,unique"`
	PeerKind string `gorm:"index:idx_psk_pair,unique"` // "server" or "client"
	Value    []byte // 32 raw bytes
}

// TableName overrides let the schema read like the original's snake_case
// Postgres tables rather than gorm's pluralized defaults.
func (Network) TableName() string      { return "networks" }
func (WgKey) TableName() string        { return "wg_keys" }
func (Server) TableName() string       { return "wg_servers" }
func (Client) TableName() string       { return "wg_clients" }
func (ServerRoute) TableName() string  { return "wg_server_routes" }
func (PreSharedKey) TableName() string { return "preshared_keys" }
