package store

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/internal/cidr"
	"github.com/wirewarden/wirewarden/internal/model"
	"github.com/wirewarden/wirewarden/internal/snapshot"
)

// LoadNetworkSnapshot assembles a snapshot.NetworkSnapshot for
// networkID: the network itself, its servers (created_at ascending) and
// clients, every key either references, decrypted, and routes grouped
// by server. Spec §4.6 requires this to reflect a transactionally
// consistent read, so every query runs inside one transaction.
func (s *Store) LoadNetworkSnapshot(networkID string) (snapshot.NetworkSnapshot, error) {
	var snap snapshot.NetworkSnapshot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = (&Store{db: tx, envelope: s.envelope}).loadNetworkSnapshot(networkID)
		return err
	})
	return snap, err
}

func (s *Store) loadNetworkSnapshot(networkID string) (snapshot.NetworkSnapshot, error) {
	network, err := s.GetNetwork(networkID)
	if err != nil {
		return snapshot.NetworkSnapshot{}, err
	}

	var servers []model.Server
	var clients []model.Client
	var routes []model.ServerRoute
	var keys []model.WgKey

	if err := s.db.Where("network_id = ?", networkID).Order("created_at ASC").Find(&servers).Error; err != nil {
		return snapshot.NetworkSnapshot{}, fmt.Errorf("store: load servers: %w", err)
	}
	if err := s.db.Where("network_id = ?", networkID).Order("created_at ASC").Find(&clients).Error; err != nil {
		return snapshot.NetworkSnapshot{}, fmt.Errorf("store: load clients: %w", err)
	}

	keyIDs := make([]string, 0, len(servers)+len(clients))
	for _, sv := range servers {
		keyIDs = append(keyIDs, sv.KeyID)
	}
	for _, c := range clients {
		keyIDs = append(keyIDs, c.KeyID)
	}
	if len(keyIDs) > 0 {
		if err := s.db.Where("id IN ?", keyIDs).Find(&keys).Error; err != nil {
			return snapshot.NetworkSnapshot{}, fmt.Errorf("store: load keys: %w", err)
		}
	}

	serverIDs := make([]string, 0, len(servers))
	for _, sv := range servers {
		serverIDs = append(serverIDs, sv.ID)
	}
	if len(serverIDs) > 0 {
		if err := s.db.Where("server_id IN ?", serverIDs).Order("created_at ASC").Find(&routes).Error; err != nil {
			return snapshot.NetworkSnapshot{}, fmt.Errorf("store: load routes: %w", err)
		}
	}

	decryptedKeys := make(map[string]snapshot.Key, len(keys))
	for _, k := range keys {
		priv, err := s.decryptKey(k)
		if err != nil {
			return snapshot.NetworkSnapshot{}, err
		}
		decryptedKeys[k.ID] = snapshot.Key{ID: k.ID, PublicKey: k.PublicKey, PrivateKey: priv}
	}

	routesByServer := make(map[string][]snapshot.Route, len(serverIDs))
	for _, r := range routes {
		routesByServer[r.ServerID] = append(routesByServer[r.ServerID], snapshot.Route{ServerID: r.ServerID, CIDR: r.RouteCIDR})
	}

	snapServers := make([]snapshot.Server, len(servers))
	for i, sv := range servers {
		host := ""
		if sv.EndpointHost != nil {
			host = *sv.EndpointHost
		}
		snapServers[i] = snapshot.Server{
			ID:                      sv.ID,
			Name:                    sv.Name,
			KeyID:                   sv.KeyID,
			AddressOffset:           sv.AddressOffset,
			ForwardsInternetTraffic: sv.ForwardsInternetTraffic,
			EndpointHost:            host,
			EndpointPort:            sv.EndpointPort,
		}
	}

	snapClients := make([]snapshot.Client, len(clients))
	for i, c := range clients {
		snapClients[i] = snapshot.Client{
			ID:            c.ID,
			Name:          c.Name,
			KeyID:         c.KeyID,
			AddressOffset: c.AddressOffset,
		}
	}

	netCIDR, err := cidr.Parse(network.CIDR)
	if err != nil {
		return snapshot.NetworkSnapshot{}, fmt.Errorf("store: stored network cidr %q is malformed: %w", network.CIDR, err)
	}

	return snapshot.NetworkSnapshot{
		Network: snapshot.Network{
			ID:                         network.ID,
			Name:                       network.Name,
			CIDRBase:                   netCIDR.Base,
			Prefix:                     netCIDR.Prefix,
			DNSServers:                 splitDNS(network.DNSServers),
			PersistentKeepaliveSeconds: network.PersistentKeepaliveSecond,
		},
		Servers:        snapServers,
		Clients:        snapClients,
		Keys:           decryptedKeys,
		RoutesByServer: routesByServer,
	}, nil
}

// decryptKey decrypts a WgKey's private key material via this store's
// envelope, returning it base64-encoded the way the wire schema expects.
func (s *Store) decryptKey(k model.WgKey) (string, error) {
	plaintext, err := s.envelope.Decrypt(k.EncryptedPrivateKey, k.Nonce)
	if err != nil {
		return "", fmt.Errorf("store: decrypt key %s: %w", k.ID, err)
	}
	return base64.StdEncoding.EncodeToString(plaintext[:]), nil
}

func splitDNS(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
