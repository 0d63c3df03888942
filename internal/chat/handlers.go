package chat

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"backend-rendezvous/internal/auth"
	"backend-rendezvous/internal/room"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:roomKey/messages", authMiddleware, func(c *fiber.Ctx) error {
		key, err := room.ParseKey(c.Params("roomKey"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		messages, err := svc.List(c.Context(), key)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(messages)
	})

	r.Post("/:roomKey/messages", authMiddleware, func(c *fiber.Ctx) error {
		key, err := room.ParseKey(c.Params("roomKey"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var req SendRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		msg, err := svc.Add(c.Context(), auth.UserID(c), key, req.Message)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	})

	r.Post("/:roomKey/images", authMiddleware, func(c *fiber.Ctx) error {
		key, err := room.ParseKey(c.Params("roomKey"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var req ImageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		msg, err := svc.AddImage(c.Context(), auth.UserID(c), key, req.URL)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	})

	r.Delete("/messages/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid message id")
		}
		if err := svc.Delete(c.Context(), id, auth.UserID(c)); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidImageURL):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotMember):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrMessageNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
