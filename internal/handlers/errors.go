package handlers

import (
	"errors"

	"authsvc/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Context keys that may be shown to clients alongside a 4xx message.
var publicDetails = []string{"errors", "strength", "suggestions"}

// ErrorHandler renders errors returned by handlers and middleware. Coded errors
// map to their HTTP status; 5xx causes are logged and never echoed back.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.L()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if apperr.Code(err) == "" && errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		status := apperr.Status(err)
		apperr.Log(logger.With(
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
		), "request failed", err)

		body := fiber.Map{"message": apperr.Message(err)}
		if status < fiber.StatusInternalServerError {
			body["code"] = apperr.Code(err)
			details := apperr.Context(err)
			for _, key := range publicDetails {
				if v, ok := details[key]; ok {
					body[key] = v
				}
			}
		}
		return c.Status(status).JSON(body)
	}
}

func badRequestBody(err error) error {
	return oops.Code(apperr.CodeValidation).With("cause", err.Error()).Errorf("Invalid request body")
}
