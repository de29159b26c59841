package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/configgen"
	"github.com/wirewarden/wirewarden/internal/snapshot"
	"github.com/wirewarden/wirewarden/internal/store"
)

type createClientRequest struct {
	NetworkID string `json:"network_id"`
	Name      string `json:"name"`
}

// CreateClient handles POST /api/clients.
func (h *Handler) CreateClient(c *fiber.Ctx) error {
	var req createClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	created, err := h.Store.CreateClient(store.ClientInput{NetworkID: req.NetworkID, Name: req.Name})
	if err != nil {
		return respondError(c, err)
	}

	resp := ClientCreateResponse{
		ClientResponse: clientResponse(created.Client),
		PrivateKey:     created.PrivateKey,
		PublicKey:      created.PublicKey,
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetClient handles GET /api/clients/{id}.
func (h *Handler) GetClient(c *fiber.Ctx) error {
	client, err := h.Store.GetClient(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(clientResponse(client))
}

// DeleteClient handles DELETE /api/clients/{id}.
func (h *Handler) DeleteClient(c *fiber.Ctx) error {
	if err := h.Store.DeleteClient(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetClientConfig handles GET /api/clients/{id}/config?forward_internet=bool,
// rendering the wg-quick text via internal/configgen (spec §4.5, §6.4).
func (h *Handler) GetClientConfig(c *fiber.Ctx) error {
	client, err := h.Store.GetClient(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	snap, err := h.Store.LoadNetworkSnapshot(client.NetworkID)
	if err != nil {
		return respondError(c, err)
	}

	clientKey, ok := snap.Keys[client.KeyID]
	if !ok {
		return respondError(c, store.ErrNotFound)
	}

	forwardInternet, _ := strconv.ParseBool(c.Query("forward_internet", "false"))

	sc, ok := findSnapshotClient(snap.Clients, client.ID)
	if !ok {
		return respondError(c, store.ErrNotFound)
	}

	text := configgen.Generate(snap, sc, clientKey, forwardInternet)
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(text)
}

func findSnapshotClient(clients []snapshot.Client, id string) (snapshot.Client, bool) {
	for _, c := range clients {
		if c.ID == id {
			return c, true
		}
	}
	return snapshot.Client{}, false
}
