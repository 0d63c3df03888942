package position

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-rendezvous/internal/auth"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Put("/me", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateRequest
		if err := c.BodyParser(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
			return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude required")
		}
		rec, err := svc.UpdatePosition(c.Context(), auth.UserID(c), *req.Latitude, *req.Longitude, req.Altitude, req.Seq)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(rec)
	})

	r.Put("/me/distance", authMiddleware, func(c *fiber.Ctx) error {
		var req DistanceRequest
		if err := c.BodyParser(&req); err != nil || req.Distance == nil {
			return fiber.NewError(fiber.StatusBadRequest, "distance required")
		}
		if err := svc.UpdateDistance(c.Context(), auth.UserID(c), *req.Distance, req.Seq); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		rec, err := svc.Self(c.Context(), auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(rec)
	})

	r.Get("/host", authMiddleware, func(c *fiber.Ctx) error {
		rec, err := svc.Host(c.Context(), auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(rec)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrStaleWrite):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPosition), errors.Is(err, ErrInvalidSeq):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
