package apiclient

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"backend-rendezvous/internal/stream"
)

const (
	minRedial = time.Second
	maxRedial = 30 * time.Second
)

// Follow listens to the room feed and calls onChange for every position or
// room event. It redials with backoff until ctx ends.
func (c *Client) Follow(ctx context.Context, roomKey int, onChange func()) error {
	wait := minRedial
	for {
		start := time.Now()
		err := c.listen(ctx, roomKey, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > maxRedial {
			wait = minRedial
		}
		c.logger.Warnw("room feed disconnected", "room_key", roomKey, "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRedial)
	}
}

func (c *Client) listen(ctx context.Context, roomKey int, onChange func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.feedURL(roomKey), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev stream.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		switch ev.Type {
		case stream.EventPosition, stream.EventRoom:
			onChange()
		}
	}
}

func (c *Client) feedURL(roomKey int) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("access_token", c.identity.Token)
	return base + "/stream/ws/" + strconv.Itoa(roomKey) + "?" + q.Encode()
}
