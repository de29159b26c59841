package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/internal/cidr"
	"github.com/wirewarden/wirewarden/internal/ipalloc"
	"github.com/wirewarden/wirewarden/internal/model"
	"github.com/wirewarden/wirewarden/internal/wgkeys"
)

// ServerInput is the caller-supplied subset of a Server's fields.
type ServerInput struct {
	NetworkID               string
	Name                    string
	EndpointHost            string // empty means no endpoint (not client/peer-reachable)
	EndpointPort            int
	ForwardsInternetTraffic bool
	Routes                  []string // additional CIDRs, validated before insert
}

// CreatedServer bundles the inserted row with the one-shot plaintext
// material (API token, private key) that is only ever available at
// creation time — the control plane never reconstructs the token, and
// the private key is re-decrypted per-request thereafter.
type CreatedServer struct {
	Server     model.Server
	APIToken   string
	PrivateKey string // base64, shown once
	PublicKey  string
}

// CreateServer allocates the next free address offset on the network,
// generates a fresh WireGuard keypair and API token, encrypts the
// private key at rest, and inserts the server and its routes in one
// transaction.
func (s *Store) CreateServer(in ServerInput) (CreatedServer, error) {
	for _, r := range in.Routes {
		if _, err := cidr.Parse(r); err != nil {
			return CreatedServer{}, fmt.Errorf("%w: route %q: %v", ErrInvalidInput, r, err)
		}
	}
	if in.EndpointHost != "" && (in.EndpointPort <= 0 || in.EndpointPort > 65535) {
		return CreatedServer{}, fmt.Errorf("%w: endpoint_port %d out of range", ErrInvalidInput, in.EndpointPort)
	}

	pair, err := wgkeys.Generate()
	if err != nil {
		return CreatedServer{}, fmt.Errorf("store: generate server key: %w", err)
	}
	ciphertext, nonce, err := s.envelope.Encrypt([32]byte(pair.Private))
	if err != nil {
		return CreatedServer{}, fmt.Errorf("store: encrypt server key: %w", err)
	}

	var created CreatedServer
	err = s.db.Transaction(func(tx *gorm.DB) error {
		prefix, err := loadNetworkPrefix(tx, in.NetworkID)
		if err != nil {
			return err
		}

		offset, err := allocateOffset(tx, in.NetworkID, prefix)
		if err != nil {
			return err
		}

		key := model.WgKey{
			ID:                  uuid.NewString(),
			PublicKey:           pair.Public.String(),
			EncryptedPrivateKey: ciphertext,
			Nonce:               nonce,
			CreatedAt:           now(),
		}
		if err := tx.Create(&key).Error; err != nil {
			return wrapWriteErr(err)
		}

		var endpointHost *string
		if in.EndpointHost != "" {
			h := in.EndpointHost
			endpointHost = &h
		}

		server := model.Server{
			ID:                      uuid.NewString(),
			NetworkID:               in.NetworkID,
			Name:                    in.Name,
			KeyID:                   key.ID,
			APIToken:                uuid.NewString(),
			AddressOffset:           offset,
			ForwardsInternetTraffic: in.ForwardsInternetTraffic,
			EndpointHost:            endpointHost,
			EndpointPort:            in.EndpointPort,
			CreatedAt:               now(),
			UpdatedAt:               now(),
		}
		if err := tx.Create(&server).Error; err != nil {
			return wrapWriteErr(err)
		}

		for _, r := range in.Routes {
			route := model.ServerRoute{
				ID:        uuid.NewString(),
				ServerID:  server.ID,
				RouteCIDR: r,
				CreatedAt: now(),
			}
			if err := tx.Create(&route).Error; err != nil {
				return wrapWriteErr(err)
			}
		}

		created = CreatedServer{
			Server:     server,
			APIToken:   server.APIToken,
			PrivateKey: pair.Private.String(),
			PublicKey:  pair.Public.String(),
		}
		return nil
	})
	if err != nil {
		return CreatedServer{}, err
	}
	return created, nil
}

// GetServer fetches a single server by ID.
func (s *Store) GetServer(id string) (model.Server, error) {
	var server model.Server
	if err := s.db.First(&server, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Server{}, ErrNotFound
		}
		return model.Server{}, fmt.Errorf("store: get server: %w", err)
	}
	return server, nil
}

// GetServerByToken authenticates a daemon's bearer token, returning the
// server it names. Used by internal/httpapi's desired-state endpoint.
func (s *Store) GetServerByToken(token string) (model.Server, error) {
	var server model.Server
	if err := s.db.First(&server, "api_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Server{}, ErrNotFound
		}
		return model.Server{}, fmt.Errorf("store: get server by token: %w", err)
	}
	return server, nil
}

// DeleteServer removes a server and its routes (cascaded).
func (s *Store) DeleteServer(id string) error {
	res := s.db.Delete(&model.Server{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete server: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListServers returns every server on a network, created_at ascending —
// the order the Config Generator's first-server-wins rule depends on.
func (s *Store) ListServers(networkID string) ([]model.Server, error) {
	var out []model.Server
	if err := s.db.Where("network_id = ?", networkID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list servers: %w", err)
	}
	return out, nil
}

func loadNetworkPrefix(tx *gorm.DB, networkID string) (uint8, error) {
	var network model.Network
	if err := tx.First(&network, "id = ?", networkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: load network: %w", err)
	}
	return uint8(network.Prefix), nil
}

// allocateOffset finds the lowest free address offset shared across a
// network's servers and clients (they draw from the same address space)
// within tx, so the read of existing offsets and the insert of the new
// row are atomic against concurrent allocation.
func allocateOffset(tx *gorm.DB, networkID string, prefix uint8) (uint32, error) {
	var serverOffsets []uint32
	if err := tx.Model(&model.Server{}).Where("network_id = ?", networkID).Pluck("address_offset", &serverOffsets).Error; err != nil {
		return 0, fmt.Errorf("store: load server offsets: %w", err)
	}
	var clientOffsets []uint32
	if err := tx.Model(&model.Client{}).Where("network_id = ?", networkID).Pluck("address_offset", &clientOffsets).Error; err != nil {
		return 0, fmt.Errorf("store: load client offsets: %w", err)
	}
	used := append(serverOffsets, clientOffsets...)
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })

	offset, err := ipalloc.FirstFreeOffset(prefix, used)
	if err != nil {
		if errors.Is(err, ipalloc.ErrNetworkFull) {
			return 0, ErrNetworkFull
		}
		return 0, err
	}
	return offset, nil
}
