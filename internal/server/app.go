// Package server wires the GophTube server together: storage backends,
// credential codec, services and the HTTP and gRPC front ends. It runs
// them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophtube/internal/filex"
	"github.com/dmitrijs2005/gophtube/internal/logging"
	"github.com/dmitrijs2005/gophtube/internal/netx"
	"github.com/dmitrijs2005/gophtube/internal/server/auth"
	"github.com/dmitrijs2005/gophtube/internal/server/blobstore"
	"github.com/dmitrijs2005/gophtube/internal/server/config"
	"github.com/dmitrijs2005/gophtube/internal/server/httpapi"
	"github.com/dmitrijs2005/gophtube/internal/server/locks"
	"github.com/dmitrijs2005/gophtube/internal/server/metrics"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtube/internal/server/services"

	gs "github.com/dmitrijs2005/gophtube/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   redis.UniversalClient
	api     *httpapi.API
	grpc    *gs.GRPCServer
	sweeper *services.Sweeper
}

// NewApp connects to the database, Redis (when configured) and the blob
// store, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	pingCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	var managerOpts []repomanager.Option
	if c.NeedsRedis() {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
		if c.SessionStore == config.SessionStoreRedis {
			managerOpts = append(managerOpts, repomanager.WithRedisSessions(app.redis, c.RefreshTokenValidityDuration))
		}
	}

	manager := repomanager.NewPostgresRepositoryManager(managerOpts...)
	if err := manager.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(c.AccessTokenSecret),
		RefreshSecret: []byte(c.RefreshTokenSecret),
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})
	if err != nil {
		return fmt.Errorf("codec init error: %w", err)
	}

	store, err := blobstore.NewS3Store(ctx, blobstore.Config{
		Region:        c.S3Region,
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		BaseEndpoint:  c.S3BaseEndpoint,
		Bucket:        c.S3Bucket,
		PublicBaseURL: c.S3PublicBaseURL,
		KeyPrefix:     c.S3KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("blob store init error: %w", err)
	}

	uploadDir, err := filex.EnsureSubdDir(c.UploadDir)
	if err != nil {
		return fmt.Errorf("upload dir error: %w", err)
	}

	m := metrics.New()
	opts := []services.Option{
		services.WithLogger(app.logger),
		services.WithMetrics(m),
		services.WithLocker(app.rotationLocker()),
		services.WithStoreTimeout(c.StoreTimeout),
	}

	sessions := services.NewSessionService(db, manager, codec, opts...)
	uploads := services.NewUploadCoordinator(store, opts...)
	users := services.NewUserService(db, manager, uploads, store, opts...)

	trusted, err := netx.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	app.sweeper = services.NewSweeper(db, manager, store, c.SweepInterval, c.SweepGracePeriod, opts...)
	app.api = httpapi.New(sessions, users, httpapi.Config{
		SecureCookies:      c.SecureCookies,
		UploadDir:          uploadDir,
		MaxUploadBytes:     c.MaxUploadBytes,
		RateLimitPerSecond: c.RateLimitPerSecond,
		RateLimitBurst:     c.RateLimitBurst,
		TrustedProxies:     trusted,
	}, app.logger, m)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, app.logger, sessions)

	return nil
}

func (app *App) rotationLocker() locks.Locker {
	switch app.config.RotationLock {
	case config.RotationLockRedis:
		return locks.NewRedis(app.redis, app.config.RotationLockTTL())
	case config.RotationLockLocal:
		return locks.NewLocal()
	default:
		return locks.Nop{}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or one of the components fails, then
// shuts the others down and releases connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.api.Run(gctx, app.config.EndpointAddrHTTP) })
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.sweeper.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	app.close()
	app.logger.Info(context.Background(), "app stopped")
	return err
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
