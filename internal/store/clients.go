package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/internal/model"
	"github.com/wirewarden/wirewarden/internal/wgkeys"
)

// ClientInput is the caller-supplied subset of a Client's fields.
type ClientInput struct {
	NetworkID string
	Name      string
}

// CreatedClient bundles the inserted row with the private key, which
// the control plane never persists in the clear and never returns
// again — the caller must download the rendered config now or lose it.
type CreatedClient struct {
	Client     model.Client
	PrivateKey string
	PublicKey  string
}

// CreateClient allocates an address offset and keypair for a new client,
// sharing the same transactional offset allocator as CreateServer so the
// two peer kinds never collide on an address.
func (s *Store) CreateClient(in ClientInput) (CreatedClient, error) {
	pair, err := wgkeys.Generate()
	if err != nil {
		return CreatedClient{}, fmt.Errorf("store: generate client key: %w", err)
	}
	ciphertext, nonce, err := s.envelope.Encrypt([32]byte(pair.Private))
	if err != nil {
		return CreatedClient{}, fmt.Errorf("store: encrypt client key: %w", err)
	}

	var created CreatedClient
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

		client := model.Client{
			ID:            uuid.NewString(),
			NetworkID:     in.NetworkID,
			Name:          in.Name,
			KeyID:         key.ID,
			AddressOffset: offset,
			CreatedAt:     now(),
			UpdatedAt:     now(),
		}
		if err := tx.Create(&client).Error; err != nil {
			return wrapWriteErr(err)
		}

		created = CreatedClient{
			Client:     client,
			PrivateKey: pair.Private.String(),
			PublicKey:  pair.Public.String(),
		}
		return nil
	})
	if err != nil {
		return CreatedClient{}, err
	}
	return created, nil
}

// GetClient fetches a single client by ID.
func (s *Store) GetClient(id string) (model.Client, error) {
	var c model.Client
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Client{}, ErrNotFound
		}
		return model.Client{}, fmt.Errorf("store: get client: %w", err)
	}
	return c, nil
}

// ListClients returns every client on a network.
func (s *Store) ListClients(networkID string) ([]model.Client, error) {
	var out []model.Client
	if err := s.db.Where("network_id = ?", networkID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list clients: %w", err)
	}
	return out, nil
}

// DeleteClient removes a client.
func (s *Store) DeleteClient(id string) error {
	res := s.db.Delete(&model.Client{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete client: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
