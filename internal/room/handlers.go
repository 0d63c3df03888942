package room

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-rendezvous/internal/auth"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/key", authMiddleware, func(c *fiber.Ctx) error {
		key, err := svc.GenerateKey(c.Context())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"room_key": key})
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		room, err := svc.Create(c.Context(), auth.UserID(c), req.Key, req.Name)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(room)
	})

	r.Post("/join", authMiddleware, func(c *fiber.Ctx) error {
		var req JoinRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		key, err := ParseKey(req.Key)
		if err != nil {
			return toHTTPError(err)
		}
		room, err := svc.Join(c.Context(), auth.UserID(c), key)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(room)
	})

	r.Get("/:key", authMiddleware, func(c *fiber.Ctx) error {
		key, err := ParseKey(c.Params("key"))
		if err != nil {
			return toHTTPError(err)
		}
		room, err := svc.Details(c.Context(), key)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(room)
	})

	r.Get("/:key/open", authMiddleware, func(c *fiber.Ctx) error {
		key, err := ParseKey(c.Params("key"))
		if err != nil {
			return toHTTPError(err)
		}
		open, err := svc.IsOpen(c.Context(), key)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"is_open": open})
	})

	r.Put("/:key/status", authMiddleware, func(c *fiber.Ctx) error {
		key, err := ParseKey(c.Params("key"))
		if err != nil {
			return toHTTPError(err)
		}
		var req StatusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		room, err := svc.SetOpen(c.Context(), auth.UserID(c), key, req.IsOpen)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(room)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRoomKey), errors.Is(err, ErrInvalidName):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRoomNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrRoomLocked):
		return fiber.NewError(fiber.StatusLocked, err.Error())
	case errors.Is(err, ErrNotHost):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrKeyTaken):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrKeyExhausted):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
