package store

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/wirewarden/wirewarden/internal/model"
)

// PeerKindServer and PeerKindClient are the two values PreSharedKey.PeerKind
// may hold — see model.PreSharedKey's doc comment on why PeerID alone
// cannot disambiguate the peer's table.
const (
	PeerKindServer = "server"
	PeerKindClient = "client"
)

// SetPresharedKey generates a fresh random 32-byte PSK for the
// (serverID, peerID) pair and upserts it, replacing any existing value —
// rotating a PSK is setting it again. Stored raw, not through
// internal/keyenvelope (see DESIGN.md's internal/keyenvelope notes: PSKs
// are a lower-value secret than the server private key and are never
// transmitted to clients, only to the daemon of the server the row is
// scoped to).
func (s *Store) SetPresharedKey(serverID, peerID, peerKind string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("store: generate preshared key: %w", err)
	}

	psk := model.PreSharedKey{
		ID:       uuid.NewString(),
		ServerID: serverID,
		PeerID:   peerID,
		PeerKind: peerKind,
		Value:    raw,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server_id"}, {Name: "peer_id"}, {Name: "peer_kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&psk).Error
	if err != nil {
		return "", wrapWriteErr(err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ListPresharedKeysForServer returns every PSK scoped to serverID's view
// of its peers, for internal/desiredstate.BuildForServer.
func (s *Store) ListPresharedKeysForServer(serverID string) ([]model.PreSharedKey, error) {
	var out []model.PreSharedKey
	if err := s.db.Where("server_id = ?", serverID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list preshared keys: %w", err)
	}
	return out, nil
}

// DeletePresharedKey removes a PSK, reverting that pair to no PSK.
func (s *Store) DeletePresharedKey(serverID, peerID, peerKind string) error {
	res := s.db.Delete(&model.PreSharedKey{}, "server_id = ? AND peer_id = ? AND peer_kind = ?", serverID, peerID, peerKind)
	if res.Error != nil {
		return fmt.Errorf("store: delete preshared key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
