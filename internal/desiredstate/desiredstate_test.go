package desiredstate

import (
	"errors"
	"testing"

	"github.com/wirewarden/wirewarden/internal/snapshot"
)

func baseSnapshot() snapshot.NetworkSnapshot {
	return snapshot.NetworkSnapshot{
		Network: snapshot.Network{
			ID:                         "net1",
			Name:                       "home",
			CIDRBase:                   0x0A000100, // 10.0.1.0
			Prefix:                     24,
			PersistentKeepaliveSeconds: 25,
		},
		Servers: []snapshot.Server{
			{ID: "srv1", Name: "gateway", KeyID: "srv1-key", AddressOffset: 1, EndpointHost: "a.example.com", EndpointPort: 51820},
			{ID: "srv2", Name: "edge", KeyID: "srv2-key", AddressOffset: 2, EndpointHost: "b.example.com", EndpointPort: 51821},
			{ID: "srv3", Name: "no-endpoint", KeyID: "srv3-key", AddressOffset: 3},
		},
		Clients: []snapshot.Client{
			{ID: "c1", Name: "laptop", KeyID: "c1-key", AddressOffset: 10},
		},
		Keys: map[string]snapshot.Key{
			"srv1-key": {ID: "srv1-key", PublicKey: "srv1-pub", PrivateKey: "srv1-priv"},
			"srv2-key": {ID: "srv2-key", PublicKey: "srv2-pub", PrivateKey: "srv2-priv"},
			"srv3-key": {ID: "srv3-key", PublicKey: "srv3-pub", PrivateKey: "srv3-priv"},
			"c1-key":   {ID: "c1-key", PublicKey: "c1-pub", PrivateKey: "c1-priv"},
		},
		RoutesByServer: map[string][]snapshot.Route{
			"srv2": {{ServerID: "srv2", CIDR: "192.168.100.0/24"}},
		},
	}
}

func TestBuildForServerSelfFields(t *testing.T) {
	cfg, err := BuildForServer(baseSnapshot(), "srv1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ID != "srv1" || cfg.Server.PrivateKey != "srv1-priv" {
		t.Fatalf("unexpected server info: %+v", cfg.Server)
	}
	if cfg.Server.Address != "10.0.1.1/24" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Network.CIDR != "10.0.1.0/24" {
		t.Fatalf("unexpected network cidr: %s", cfg.Network.CIDR)
	}
}

func TestBuildForServerExcludesSelfAndEndpointlessPeers(t *testing.T) {
	cfg, err := BuildForServer(baseSnapshot(), "srv1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range cfg.Peers {
		if p.PublicKey == "srv1-pub" {
			t.Fatalf("server must not appear as its own peer: %+v", cfg.Peers)
		}
		if p.PublicKey == "srv3-pub" {
			t.Fatalf("endpointless server must not appear as a peer: %+v", cfg.Peers)
		}
	}
	// expect exactly srv2 and c1
	if len(cfg.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %d: %+v", len(cfg.Peers), cfg.Peers)
	}
}

func TestBuildForServerPeerShapes(t *testing.T) {
	cfg, err := BuildForServer(baseSnapshot(), "srv1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var otherServerPeer, clientPeer *struct {
		allowed  []string
		endpoint *string
	}
	for i := range cfg.Peers {
		p := cfg.Peers[i]
		if p.PublicKey == "srv2-pub" {
			otherServerPeer = &struct {
				allowed  []string
				endpoint *string
			}{p.AllowedIPs, p.Endpoint}
		}
		if p.PublicKey == "c1-pub" {
			clientPeer = &struct {
				allowed  []string
				endpoint *string
			}{p.AllowedIPs, p.Endpoint}
		}
	}

	if otherServerPeer == nil {
		t.Fatal("missing peer for srv2")
	}
	if otherServerPeer.endpoint == nil || *otherServerPeer.endpoint != "b.example.com:51821" {
		t.Fatalf("unexpected endpoint for srv2: %v", otherServerPeer.endpoint)
	}
	if len(otherServerPeer.allowed) != 2 || otherServerPeer.allowed[0] != "10.0.1.2/32" || otherServerPeer.allowed[1] != "192.168.100.0/24" {
		t.Fatalf("unexpected allowed_ips for srv2 peer (no collapsing expected): %v", otherServerPeer.allowed)
	}

	if clientPeer == nil {
		t.Fatal("missing peer for c1")
	}
	if clientPeer.endpoint != nil {
		t.Fatalf("client peer must have a nil endpoint, got %v", *clientPeer.endpoint)
	}
	if len(clientPeer.allowed) != 1 || clientPeer.allowed[0] != "10.0.1.10/32" {
		t.Fatalf("unexpected allowed_ips for client peer: %v", clientPeer.allowed)
	}
}

func TestBuildForServerAttachesPresharedKeys(t *testing.T) {
	psks := []snapshot.PresharedKey{
		{ServerID: "srv1", PeerID: "srv2", Value: "psk-srv1-srv2"},
		{ServerID: "srv1", PeerID: "c1", Value: "psk-srv1-c1"},
		{ServerID: "srv2", PeerID: "srv1", Value: "psk-srv2-srv1-should-not-apply"},
	}
	cfg, err := BuildForServer(baseSnapshot(), "srv1", psks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := map[string]string{}
	for _, p := range cfg.Peers {
		if p.PresharedKey != nil {
			found[p.PublicKey] = *p.PresharedKey
		}
	}
	if found["srv2-pub"] != "psk-srv1-srv2" {
		t.Fatalf("expected srv2 peer to carry psk-srv1-srv2, got %q", found["srv2-pub"])
	}
	if found["c1-pub"] != "psk-srv1-c1" {
		t.Fatalf("expected c1 peer to carry psk-srv1-c1, got %q", found["c1-pub"])
	}
}

func TestBuildForServerUnknownServer(t *testing.T) {
	_, err := BuildForServer(baseSnapshot(), "does-not-exist", nil)
	if err == nil {
		t.Fatal("expected error for unknown server id")
	}
	var notFound ErrServerNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrServerNotFound, got %T: %v", err, err)
	}
	if notFound.ServerID != "does-not-exist" {
		t.Fatalf("unexpected server id in error: %s", notFound.ServerID)
	}
}

func TestBuildForServerNoPeersWhenAlone(t *testing.T) {
	snap := baseSnapshot()
	snap.Servers = []snapshot.Server{snap.Servers[0]}
	snap.Clients = nil
	cfg, err := BuildForServer(snap, "srv1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Peers) != 0 {
		t.Fatalf("expected no peers, got %+v", cfg.Peers)
	}
}
