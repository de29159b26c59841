// Package httpapi is the control plane's REST surface: a thin fiber
// layer over internal/store, plus the one endpoint with real
// algorithmic content the daemon depends on — the desired-state fetch,
// which delegates to internal/desiredstate.
package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/store"
)

// Handler holds the dependencies every route needs. It carries no
// mutable state of its own beyond the store handle — every request is
// independent, matching spec §5's "each request is a distinct
// transaction" model. PublicURL is this control plane's own externally
// reachable base URL (the PUBLIC_URL env var), used only to render the
// one-shot connect-command string in a server-creation response.
type Handler struct {
	Store     *store.Store
	PublicURL string
}

// NewHandler constructs a Handler over an already-opened store.
func NewHandler(s *store.Store, publicURL string) *Handler {
	return &Handler{Store: s, PublicURL: publicURL}
}

// RegisterRoutes wires every route in SPEC_FULL.md's control-plane HTTP
// surface onto app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	networks := api.Group("/networks")
	networks.Post("/", h.CreateNetwork)
	networks.Get("/", h.ListNetworks)
	networks.Get("/:id", h.GetNetwork)
	networks.Delete("/:id", h.DeleteNetwork)
	networks.Get("/:id/servers", h.ListServers)
	networks.Get("/:id/clients", h.ListClients)

	servers := api.Group("/servers")
	servers.Post("/", h.CreateServer)
	servers.Get("/:id", h.GetServer)
	servers.Delete("/:id", h.DeleteServer)
	servers.Post("/:id/routes", h.AddServerRoute)

	api.Delete("/routes/:id", h.DeleteServerRoute)

	clients := api.Group("/clients")
	clients.Post("/", h.CreateClient)
	clients.Get("/:id", h.GetClient)
	clients.Delete("/:id", h.DeleteClient)
	clients.Get("/:id/config", h.GetClientConfig)

	api.Get("/daemon/config", h.GetDaemonConfig)
}
