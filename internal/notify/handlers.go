package notify

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Request
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if req.Body == "" || (req.Subscription == nil && req.Token == "") {
			return fiber.NewError(fiber.StatusBadRequest, "body and a subscription or token are required")
		}

		if err := svc.Dispatch(c.Context(), req); err != nil {
			svc.logger.Errorw("push dispatch failed", "error", err)
			status := fiber.StatusInternalServerError
			var statusErr *StatusError
			switch {
			case errors.As(err, &statusErr):
				status = statusErr.Code
			case errors.Is(err, errNotConfigured):
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{"success": false, "error": "failed to send notification"})
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
