package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
)

// Every REST response uses one envelope so clients parse a single shape.
type envelope struct {
	Success bool     `json:"success"`
	Status  int      `json:"status"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func ok(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{
		Success: true,
		Status:  status,
		Message: message,
		Data:    data,
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(envelope{
		Success: false,
		Status:  status,
		Message: message,
		Errors:  []string{message},
	})
}

// failErr maps the error taxonomy onto HTTP statuses. Internal details never
// reach the wire.
func failErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindAuthentication:
		status = fiber.StatusUnauthorized
	case apperr.KindAuthorization:
		status = fiber.StatusForbidden
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindValidation:
		status = fiber.StatusBadRequest
	case apperr.KindConflict:
		status = fiber.StatusConflict
	}
	return fail(c, status, apperr.MessageOf(err))
}
