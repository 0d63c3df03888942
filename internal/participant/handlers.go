package participant

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-rendezvous/internal/auth"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(p)
	})

	r.Get("/me/settings", authMiddleware, func(c *fiber.Ctx) error {
		st, err := svc.Settings(c.Context(), auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(st)
	})

	r.Put("/me/settings", authMiddleware, func(c *fiber.Ctx) error {
		var req Settings
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		st, err := svc.UpdateSettings(c.Context(), auth.UserID(c), req)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(st)
	})

	r.Post("/me/reset", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Reset(c.Context(), auth.UserID(c)); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/me/clients", authMiddleware, func(c *fiber.Ctx) error {
		key, err := svc.RoomKey(c.Context(), auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		clients, err := svc.Clients(c.Context(), key)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(clients)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidName):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoRoom):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
