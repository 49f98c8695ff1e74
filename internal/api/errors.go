package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/registry"
	"github.com/abhisek/geoquiz/internal/session"
)

var (
	errBadRequest  = errors.New("bad request")
	errNoSession   = errors.New("missing X-Session-ID header")
	errForbidden   = errors.New("admin role required")
	errRateLimited = errors.New("too many requests")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, errNoSession), errors.Is(err, engine.ErrInvalidAnswer):
		return fiber.StatusBadRequest
	case errors.Is(err, errForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, registry.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrSessionClosed), errors.Is(err, session.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, errRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, engine.ErrCatalogUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders handler errors as ErrorResponse.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	code := statusFor(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "internal error"
	}
	return c.Status(code).JSON(ErrorResponse{Error: msg})
}
