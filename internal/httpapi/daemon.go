package httpapi

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/desiredstate"
	"github.com/wirewarden/wirewarden/internal/model"
	"github.com/wirewarden/wirewarden/internal/snapshot"
	"github.com/wirewarden/wirewarden/internal/store"
)

// GetDaemonConfig handles GET /api/daemon/config (spec §6.1). The caller
// authenticates with "Authorization: Bearer <api_token>"; 401 means the
// token matches no server row (unknown, or its server was deleted, which
// is how a token is revoked), 404 means the token's server was found but
// its network, or the server itself, is missing from the snapshot read
// that follows — both are the reconciler's authoritative teardown signal.
func (h *Handler) GetDaemonConfig(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing bearer token"})
	}

	server, err := h.Store.GetServerByToken(token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unknown api token"})
		}
		return respondError(c, err)
	}

	snap, err := h.Store.LoadNetworkSnapshot(server.NetworkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "server's network no longer exists"})
		}
		return respondError(c, err)
	}

	psks, err := h.Store.ListPresharedKeysForServer(server.ID)
	if err != nil {
		return respondError(c, err)
	}

	cfg, err := desiredstate.BuildForServer(snap, server.ID, toSnapshotPSKs(psks))
	if err != nil {
		var notFound desiredstate.ErrServerNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "server not found"})
		}
		return respondError(c, err)
	}

	return c.JSON(cfg)
}

func toSnapshotPSKs(psks []model.PreSharedKey) []snapshot.PresharedKey {
	out := make([]snapshot.PresharedKey, len(psks))
	for i, p := range psks {
		out[i] = snapshot.PresharedKey{
			ServerID: p.ServerID,
			PeerID:   p.PeerID,
			Value:    base64.StdEncoding.EncodeToString(p.Value),
		}
	}
	return out
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
