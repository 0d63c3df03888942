package preview

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(r fiber.Router, s *Scraper, logger *zap.SugaredLogger, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		target := c.Query("url")
		if target == "" {
			return fiber.NewError(fiber.StatusBadRequest, "url is required")
		}
		meta, err := s.Fetch(c.Context(), target)
		if err != nil {
			if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrForbiddenHost) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			logger.Warnw("preview fetch failed", "url", target, "error", err)
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch preview data from the source")
		}
		return c.JSON(meta)
	})
}
