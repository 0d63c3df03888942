package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventMessage  = "message"
	EventPosition = "position"
	EventRoom     = "room"
)

const (
	channelPrefix  = "room:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Event is the envelope written to every websocket client of a room.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	logger  *zap.SugaredLogger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	RoomKey string
	Send    chan []byte
}

// NewHub fans room events out to local clients. With a redis client, events
// travel through redis so every instance sees them; the pattern subscription
// is confirmed before NewHub returns.
func NewHub(redisClient *redis.Client, logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &Hub{
		redis:   redisClient,
		logger:  logger,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ps := redisClient.PSubscribe(context.Background(), channelPattern)
		if _, err := ps.Receive(context.Background()); err != nil {
			logger.Warnw("redis subscribe failed, room feed stays local", "error", err)
			_ = ps.Close()
		} else {
			h.pubsub = ps
			go h.subscribeRedis()
		}
	}
	return h
}

func (h *Hub) Register(roomKey string) *Client {
	client := &Client{
		RoomKey: roomKey,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[roomKey] == nil {
		h.clients[roomKey] = map[*Client]struct{}{}
	}
	h.clients[roomKey][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.clients[client.RoomKey]; ok {
		if _, ok := roomClients[client]; !ok {
			return
		}
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.clients, client.RoomKey)
		}
		close(client.Send)
	}
}

// Broadcast delivers payload to the room's clients on every instance.
func (h *Hub) Broadcast(roomKey string, payload []byte) {
	if h.pubsub != nil {
		err := h.redis.Publish(context.Background(), redisChannel(roomKey), payload).Err()
		if err == nil {
			return
		}
		h.logger.Warnw("redis publish failed", "room", roomKey, "error", err)
	}
	h.deliver(roomKey, payload)
}

// Publish wraps data in an Event and broadcasts it to the room.
func (h *Hub) Publish(roomKey int, kind string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Errorw("encode event", "type", kind, "error", err)
		return
	}
	payload, err := json.Marshal(Event{Type: kind, Data: raw})
	if err != nil {
		h.logger.Errorw("encode envelope", "type", kind, "error", err)
		return
	}
	h.Broadcast(strconv.Itoa(roomKey), payload)
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(roomKey string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[roomKey] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Debugw("dropping event for slow client", "room", roomKey)
		}
	}
}

func (h *Hub) connected(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[roomKey])
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		roomKey := roomKeyFromChannel(msg.Channel)
		if roomKey == "" {
			continue
		}
		h.deliver(roomKey, []byte(msg.Payload))
	}
}

func redisChannel(roomKey string) string {
	return channelPrefix + roomKey + channelSuffix
}

func roomKeyFromChannel(ch string) string {
	// room:{key}:broadcast
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
