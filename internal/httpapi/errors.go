package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wirewarden/wirewarden/internal/desiredstate"
	"github.com/wirewarden/wirewarden/internal/store"
)

// ErrorResponse is the JSON body every failed request returns.
type ErrorResponse struct {
	Error string `json:"error"`
}

// toHTTPError maps an internal error onto a fiber status code and body,
// the way the teacher's toGRPCError maps daemon errors onto gRPC status
// codes: typed sentinels first via errors.Is/As, a string-matching
// fallback for anything not yet converted to a typed case, Internal
// Server Error as the last resort. Crypto failures from
// internal/keyenvelope always fall through to 500 — their message is
// never echoed verbatim to the caller (spec §7).
func toHTTPError(err error) (int, ErrorResponse) {
	if err == nil {
		return fiber.StatusOK, ErrorResponse{}
	}

	if errors.Is(err, store.ErrNotFound) {
		return fiber.StatusNotFound, ErrorResponse{Error: "not found"}
	}
	if errors.Is(err, store.ErrConflict) {
		return fiber.StatusConflict, ErrorResponse{Error: "already exists"}
	}
	if errors.Is(err, store.ErrNetworkFull) {
		return fiber.StatusConflict, ErrorResponse{Error: "network has no free addresses"}
	}
	if errors.Is(err, store.ErrInvalidInput) {
		return fiber.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	var notFoundServer desiredstate.ErrServerNotFound
	if errors.As(err, &notFoundServer) {
		return fiber.StatusNotFound, ErrorResponse{Error: "not found"}
	}

	msg := err.Error()
	if strings.Contains(msg, "decrypt") || strings.Contains(msg, "encrypt") {
		return fiber.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
	if strings.Contains(msg, "is required") || strings.Contains(msg, "must be") {
		return fiber.StatusBadRequest, ErrorResponse{Error: msg}
	}

	return fiber.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}

func respondError(c *fiber.Ctx, err error) error {
	status, body := toHTTPError(err)
	return c.Status(status).JSON(body)
}
