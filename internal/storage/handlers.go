package storage

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-rendezvous/internal/auth"
	"backend-rendezvous/internal/room"
)

const maxUploadBytes = 10 << 20

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/icons", authMiddleware, func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		if file.Size > maxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large")
		}
		f, err := file.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read file")
		}
		defer f.Close()

		obj, err := svc.UploadIcon(c.Context(), auth.UserID(c), file.Filename, f)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})

	r.Post("/chat-images/:roomKey", authMiddleware, func(c *fiber.Ctx) error {
		key, err := room.ParseKey(c.Params("roomKey"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		file, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		if file.Size > maxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large")
		}
		f, err := file.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read file")
		}
		defer f.Close()

		obj, err := svc.UploadChatImage(c.Context(), auth.UserID(c), key, file.Filename, f)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrNoStore):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
