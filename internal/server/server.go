package server

import (
	"backend-rendezvous/internal/auth"
	"backend-rendezvous/internal/chat"
	"backend-rendezvous/internal/config"
	"backend-rendezvous/internal/db"
	"backend-rendezvous/internal/notify"
	"backend-rendezvous/internal/participant"
	"backend-rendezvous/internal/position"
	"backend-rendezvous/internal/preview"
	"backend-rendezvous/internal/room"
	"backend-rendezvous/internal/storage"
	"backend-rendezvous/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub
	Logger *zap.SugaredLogger

	store   storage.ObjectStore
	webPush notify.WebSender
	fcm     notify.TokenSender
}

type Option func(*Server)

// WithObjectStore enables icon and chat image uploads.
func WithObjectStore(store storage.ObjectStore) Option {
	return func(s *Server) { s.store = store }
}

// WithNotifiers sets the push channels; either may be nil.
func WithNotifiers(web notify.WebSender, fcm notify.TokenSender) Option {
	return func(s *Server) {
		s.webPush = web
		s.fcm = fcm
	}
}

func NewServer(cfg config.Config, querier db.Querier, redisClient *redis.Client, log *zap.SugaredLogger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     querier,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	participants := participant.NewService(s.DB)
	participant.RegisterRoutes(s.App.Group("/participants"), participants, jwtMiddleware)
	room.RegisterRoutes(s.App.Group("/rooms"), room.NewService(s.DB, s.Stream), jwtMiddleware)
	position.RegisterRoutes(s.App.Group("/positions"), position.NewService(s.DB, s.Stream), jwtMiddleware)
	chat.RegisterRoutes(s.App.Group("/chat"), chat.NewService(s.DB, s.Stream), jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(s.DB, s.store), jwtMiddleware)
	notify.RegisterRoutes(s.App.Group("/notifications"), notify.NewService(s.webPush, s.fcm, s.Logger), jwtMiddleware)
	preview.RegisterRoutes(s.App.Group("/ogp"), preview.NewScraper(s.Cfg.PreviewTimeout), s.Logger, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, participants, jwtMiddleware)
}

// Close releases the room feed subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}
