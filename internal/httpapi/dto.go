package httpapi

import (
	"strings"

	"github.com/wirewarden/wirewarden/internal/model"
)

// NetworkResponse is the JSON shape of a network.
type NetworkResponse struct {
	ID                        string   `json:"id"`
	Name                      string   `json:"name"`
	CIDR                      string   `json:"cidr"`
	DNSServers                []string `json:"dns_servers"`
	PersistentKeepaliveSecond int      `json:"persistent_keepalive_seconds"`
}

func networkResponse(n model.Network) NetworkResponse {
	return NetworkResponse{
		ID:                        n.ID,
		Name:                      n.Name,
		CIDR:                      n.CIDR,
		DNSServers:                splitCSV(n.DNSServers),
		PersistentKeepaliveSecond: n.PersistentKeepaliveSecond,
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ServerResponse is the JSON shape of a server on a normal (non-creation)
// read: the API token is never shown again, only its first 8 characters
// as a human-recognizable fingerprint (spec §3's "shown once").
type ServerResponse struct {
	ID                      string  `json:"id"`
	NetworkID               string  `json:"network_id"`
	Name                    string  `json:"name"`
	APITokenPrefix          string  `json:"api_token_prefix"`
	AddressOffset           uint32  `json:"address_offset"`
	ForwardsInternetTraffic bool    `json:"forwards_internet_traffic"`
	EndpointHost            *string `json:"endpoint_host"`
	EndpointPort            int     `json:"endpoint_port"`
}

func serverResponse(s model.Server) ServerResponse {
	return ServerResponse{
		ID:                      s.ID,
		NetworkID:               s.NetworkID,
		Name:                    s.Name,
		APITokenPrefix:          tokenPrefix(s.APIToken),
		AddressOffset:           s.AddressOffset,
		ForwardsInternetTraffic: s.ForwardsInternetTraffic,
		EndpointHost:            s.EndpointHost,
		EndpointPort:            s.EndpointPort,
	}
}

func tokenPrefix(token string) string {
	const n = 8
	if len(token) <= n {
		return token
	}
	return token[:n]
}

// ServerCreateResponse is the creation-only response: it carries the
// server's plaintext API token, its private key, and a ready-to-paste
// connect command — none of which the control plane will ever return
// again (restored from original_source/routes/servers.rs; see
// SPEC_FULL.md's Supplement section).
type ServerCreateResponse struct {
	ServerResponse
	APIToken   string `json:"api_token"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Connect    string `json:"connect_command"`
}

// ClientResponse is the JSON shape of a client on a normal read.
type ClientResponse struct {
	ID            string `json:"id"`
	NetworkID     string `json:"network_id"`
	Name          string `json:"name"`
	AddressOffset uint32 `json:"address_offset"`
}

func clientResponse(c model.Client) ClientResponse {
	return ClientResponse{
		ID:            c.ID,
		NetworkID:     c.NetworkID,
		Name:          c.Name,
		AddressOffset: c.AddressOffset,
	}
}

// ClientCreateResponse additionally carries the one-shot private key —
// the client config can always be re-downloaded via
// GET /api/clients/{id}/config, but the raw key material is shown only
// at creation.
type ClientCreateResponse struct {
	ClientResponse
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

// RouteResponse is the JSON shape of a server route.
type RouteResponse struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	RouteCIDR string `json:"route_cidr"`
}

func routeResponse(r model.ServerRoute) RouteResponse {
	return RouteResponse{ID: r.ID, ServerID: r.ServerID, RouteCIDR: r.RouteCIDR}
}
