// Package errxfiber renders errx errors as Fiber responses.
package errxfiber

import (
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the app-wide fiber.ErrorHandler. Fiber errors keep their
// status; everything else goes through errx.ToEnvelope.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errx.Envelope{
				Success: false,
				Error:   fe.Message,
				Code:    "HTTP_ERROR",
			})
		}

		status, env := errx.ToEnvelope(err, debug)
		log := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"status":     status,
			"code":       env.Code,
			"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
		})
		if status >= fiber.StatusInternalServerError {
			log.WithError(err).Error("request failed")
		} else {
			log.Debug("request rejected")
		}
		return c.Status(status).JSON(env)
	}
}

// OK writes a success envelope.
func OK(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(errx.OK(data, message))
}
