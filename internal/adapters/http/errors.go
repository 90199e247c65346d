package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nlzhang/geopin/internal/core/domain"
)

// APIError is a structured error response. Session-changing endpoints embed
// the post-operation snapshot so clients never have to guess the state.
type APIError struct {
	Status    int                     `json:"status"`
	Code      string                  `json:"code"`    // Error code: bad_request, helper_unavailable, etc.
	Message   string                  `json:"message"` // Human-readable message
	RequestID string                  `json:"request_id,omitempty"`
	Session   *domain.SessionSnapshot `json:"session,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(c),
	})
}

// newSessionError is newError with the current session snapshot attached.
func newSessionError(c *fiber.Ctx, status int, code, message string, snap domain.SessionSnapshot) error {
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(c),
		Session:   &snap,
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

// opErrorStatus maps a session error kind to an HTTP status and code.
func opErrorStatus(kind domain.ErrorKind) (int, string) {
	switch kind {
	case domain.KindInvalidCoordinate:
		return 400, "invalid_coordinate"
	case domain.KindHelperUnavailable:
		return 503, "helper_unavailable"
	case domain.KindHelperRejected:
		return 502, "helper_rejected"
	default:
		return 500, "unknown"
	}
}

// errFromOp renders a session operation failure, embedding the snapshot the
// operation left behind.
func errFromOp(c *fiber.Ctx, err error, snap domain.SessionSnapshot) error {
	oe := domain.AsOpError(err)
	status, code := opErrorStatus(oe.Kind)
	return newSessionError(c, status, code, oe.Message, snap)
}
