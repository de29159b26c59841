package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/store"
)

type createServerRequest struct {
	NetworkID               string   `json:"network_id"`
	Name                    string   `json:"name"`
	EndpointHost            string   `json:"endpoint_host"`
	EndpointPort            int      `json:"endpoint_port"`
	ForwardsInternetTraffic bool     `json:"forwards_internet_traffic"`
	Routes                  []string `json:"routes"`
}

// CreateServer handles POST /api/servers. The response is the only place
// the plaintext API token, private key and a ready-to-run connect
// command ever appear — restored from original_source/routes/servers.rs.
func (h *Handler) CreateServer(c *fiber.Ctx) error {
	var req createServerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	created, err := h.Store.CreateServer(store.ServerInput{
		NetworkID:               req.NetworkID,
		Name:                    req.Name,
		EndpointHost:            req.EndpointHost,
		EndpointPort:            req.EndpointPort,
		ForwardsInternetTraffic: req.ForwardsInternetTraffic,
		Routes:                  req.Routes,
	})
	if err != nil {
		return respondError(c, err)
	}

	resp := ServerCreateResponse{
		ServerResponse: serverResponse(created.Server),
		APIToken:       created.APIToken,
		PrivateKey:     created.PrivateKey,
		PublicKey:      created.PublicKey,
		Connect:        h.connectCommand(created.APIToken),
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) connectCommand(apiToken string) string {
	host := h.PublicURL
	if host == "" {
		host = "https://control.example.com"
	}
	return fmt.Sprintf("wirewarden-agent connect --api-host %s --api-token %s", host, apiToken)
}

// GetServer handles GET /api/servers/{id}.
func (h *Handler) GetServer(c *fiber.Ctx) error {
	server, err := h.Store.GetServer(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serverResponse(server))
}

// DeleteServer handles DELETE /api/servers/{id}.
func (h *Handler) DeleteServer(c *fiber.Ctx) error {
	if err := h.Store.DeleteServer(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type addRouteRequest struct {
	RouteCIDR string `json:"route_cidr"`
}

// AddServerRoute handles POST /api/servers/{id}/routes.
func (h *Handler) AddServerRoute(c *fiber.Ctx) error {
	var req addRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	route, err := h.Store.AddServerRoute(c.Params("id"), req.RouteCIDR)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(routeResponse(route))
}

// DeleteServerRoute handles DELETE /api/routes/{id}.
func (h *Handler) DeleteServerRoute(c *fiber.Ctx) error {
	if err := h.Store.DeleteServerRoute(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
