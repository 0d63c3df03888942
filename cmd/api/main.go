package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-rendezvous/internal/config"
	"backend-rendezvous/internal/db"
	"backend-rendezvous/internal/logging"
	"backend-rendezvous/internal/notify"
	"backend-rendezvous/internal/retention"
	"backend-rendezvous/internal/server"
	"backend-rendezvous/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(string) (*zap.SugaredLogger, error)
	migrate         func(string) error
	schemaVersion   func(string) (uint, bool, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *zap.SugaredLogger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logging.New,
		migrate:         db.MigrateUp,
		schemaVersion:   db.MigrateVersion,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	logger, err := deps.newLogger(cfg.LogLevel)
	if err != nil {
		logger = zap.NewNop().Sugar()
	}
	defer func() { _ = logger.Sync() }()

	if cfg.MigrateOnStart {
		if err := deps.migrate(cfg.PostgresURL); err != nil {
			logger.Errorw("database migration failed", "error", err)
		} else if version, dirty, err := deps.schemaVersion(cfg.PostgresURL); err != nil {
			logger.Warnw("database schema version unavailable", "error", err)
		} else {
			logger.Infow("database schema ready", "version", version, "dirty", dirty)
		}
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logger.Errorw("postgres connection failed", "error", err)
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, logger, signals, nil); err != nil {
		logger.Errorw("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and the retention job, then waits for
// termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, logger *zap.SugaredLogger, signals <-chan os.Signal, listen ListenFunc) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	defer func() {
		if pg != nil {
			pg.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	var querier db.Querier
	if pg != nil {
		querier = pg
	}
	srv := server.NewServer(cfg, querier, rdb, logger, serverOptions(ctx, cfg, logger)...)
	defer func() { _ = srv.Close() }()

	if pg != nil && cfg.RetentionInterval > 0 {
		purger := retention.NewPurger(pg, logger, cfg.RoomRetention, cfg.UserRetention)
		sched, err := retention.Start(ctx, purger, cfg.RetentionInterval)
		if err != nil {
			logger.Errorw("retention scheduler failed to start", "error", err)
		} else {
			defer func() { _ = sched.Shutdown() }()
		}
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return shutdownFn(srv.App, shutdownCtx)
}

// serverOptions enables the object store and push channels that have
// credentials configured.
func serverOptions(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) []server.Option {
	var opts []server.Option

	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		store, err := storage.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Errorw("cloudinary init failed, uploads disabled", "error", err)
		} else {
			opts = append(opts, server.WithObjectStore(store))
		}
	}

	var web notify.WebSender
	if wp := notify.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber); wp != nil {
		web = wp
	}
	var token notify.TokenSender
	fcm, err := notify.NewFCM(ctx, cfg.FirebaseCredentialsFile)
	switch {
	case err != nil:
		logger.Errorw("firebase init failed, token push disabled", "error", err)
	case fcm != nil:
		token = fcm
	}
	return append(opts, server.WithNotifiers(web, token))
}
