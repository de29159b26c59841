package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wirewarden/wirewarden/internal/cidr"
	"github.com/wirewarden/wirewarden/internal/model"
)

// AddServerRoute validates and attaches an extra advertised CIDR to an
// existing server.
func (s *Store) AddServerRoute(serverID, routeCIDR string) (model.ServerRoute, error) {
	if _, err := cidr.Parse(routeCIDR); err != nil {
		return model.ServerRoute{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	route := model.ServerRoute{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		RouteCIDR: routeCIDR,
		CreatedAt: now(),
	}
	if err := s.db.Create(&route).Error; err != nil {
		return model.ServerRoute{}, wrapWriteErr(err)
	}
	return route, nil
}

// ListServerRoutes returns every route a server advertises.
func (s *Store) ListServerRoutes(serverID string) ([]model.ServerRoute, error) {
	var out []model.ServerRoute
	if err := s.db.Where("server_id = ?", serverID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list routes: %w", err)
	}
	return out, nil
}

// DeleteServerRoute removes a single route by ID.
func (s *Store) DeleteServerRoute(id string) error {
	res := s.db.Delete(&model.ServerRoute{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete route: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
