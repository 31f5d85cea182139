package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errEngine maps an engine error onto a response. The message is the
// user-facing text, never the raw error.
func errEngine(c *fiber.Ctx, err error) error {
	var (
		invalid   *domain.InvalidClickError
		transport *domain.TransportError
	)
	switch {
	case errors.Is(err, domain.ErrSuperseded):
		return errConflict(c, "a newer request replaced this one")
	case errors.As(err, &invalid):
		return errBadRequest(c, domain.UserMessage(err))
	case errors.Is(err, domain.ErrUnknownFacility):
		return errNotFound(c, domain.UserMessage(err))
	case errors.Is(err, domain.ErrNoCoordinates):
		return newError(c, 422, "no_coordinates", domain.UserMessage(err))
	case errors.As(err, &transport):
		LoggerFromCtx(c.UserContext()).Warn("upstream failure", "error", err)
		return newError(c, 502, "upstream_error", domain.UserMessage(err))
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "error", err)
	return errInternal(c, domain.UserMessage(err))
}
