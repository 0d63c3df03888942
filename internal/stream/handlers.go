package stream

import (
	"context"
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"backend-rendezvous/internal/auth"
)

var roomKeyPattern = regexp.MustCompile(`^\d{4}$`)

// Membership tells whether a participant currently belongs to a room.
type Membership interface {
	InRoom(ctx context.Context, userID string, roomKey int) (bool, error)
}

func RegisterRoutes(r fiber.Router, hub *Hub, members Membership, authMiddleware fiber.Handler) {
	r.Use("/ws", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:roomKey", func(c *fiber.Ctx) error {
		raw := c.Params("roomKey")
		if !roomKeyPattern.MatchString(raw) {
			return fiber.NewError(fiber.StatusBadRequest, "room key must be four digits")
		}
		key, _ := strconv.Atoi(raw)
		in, err := members.InRoom(c.Context(), auth.UserID(c), key)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !in {
			return fiber.NewError(fiber.StatusForbidden, "not a member of this room")
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("roomKey"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
