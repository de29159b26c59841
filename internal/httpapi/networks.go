package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/store"
)

type createNetworkRequest struct {
	Name                      string   `json:"name"`
	CIDR                      string   `json:"cidr"`
	DNSServers                []string `json:"dns_servers"`
	PersistentKeepaliveSecond int      `json:"persistent_keepalive_seconds"`
}

// CreateNetwork handles POST /api/networks.
func (h *Handler) CreateNetwork(c *fiber.Ctx) error {
	var req createNetworkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	network, err := h.Store.CreateNetwork(store.NetworkInput{
		Name:                      req.Name,
		CIDR:                      req.CIDR,
		DNSServers:                req.DNSServers,
		PersistentKeepaliveSecond: req.PersistentKeepaliveSecond,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(networkResponse(network))
}

// ListNetworks handles GET /api/networks.
func (h *Handler) ListNetworks(c *fiber.Ctx) error {
	networks, err := h.Store.ListNetworks()
	if err != nil {
		return respondError(c, err)
	}
	out := make([]NetworkResponse, len(networks))
	for i, n := range networks {
		out[i] = networkResponse(n)
	}
	return c.JSON(out)
}

// GetNetwork handles GET /api/networks/{id}.
func (h *Handler) GetNetwork(c *fiber.Ctx) error {
	network, err := h.Store.GetNetwork(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(networkResponse(network))
}

// DeleteNetwork handles DELETE /api/networks/{id}.
func (h *Handler) DeleteNetwork(c *fiber.Ctx) error {
	if err := h.Store.DeleteNetwork(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListServers handles GET /api/networks/{id}/servers.
func (h *Handler) ListServers(c *fiber.Ctx) error {
	servers, err := h.Store.ListServers(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]ServerResponse, len(servers))
	for i, s := range servers {
		out[i] = serverResponse(s)
	}
	return c.JSON(out)
}

// ListClients handles GET /api/networks/{id}/clients.
func (h *Handler) ListClients(c *fiber.Ctx) error {
	clients, err := h.Store.ListClients(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]ClientResponse, len(clients))
	for i, cl := range clients {
		out[i] = clientResponse(cl)
	}
	return c.JSON(out)
}
