// Package app assembles the configured components into a running service:
// venue adapters, audit log, notifier, router, status tracker and the HTTP
// API. Optional backends (Postgres, Redis, S3) attach only when enabled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PatrionDigital/tradewire/internal/audit"
	s3blob "github.com/PatrionDigital/tradewire/internal/blob/s3"
	rediscache "github.com/PatrionDigital/tradewire/internal/cache/redis"
	"github.com/PatrionDigital/tradewire/internal/config"
	"github.com/PatrionDigital/tradewire/internal/notify"
	"github.com/PatrionDigital/tradewire/internal/router"
	"github.com/PatrionDigital/tradewire/internal/server"
	"github.com/PatrionDigital/tradewire/internal/server/ws"
	"github.com/PatrionDigital/tradewire/internal/store/postgres"
	"github.com/PatrionDigital/tradewire/internal/tracker"
)

// shutdownTimeout bounds the HTTP drain on exit.
const shutdownTimeout = 10 * time.Second

// App is the assembled service. Build it with New, run it with Run.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	auditLog *audit.Log
	archiver *audit.BlobArchiver
	notifier *notify.Notifier
	router   *router.Router
	poller   *tracker.Poller
	hub      *ws.Hub
	server   *server.Server

	pg   *postgres.Client
	rdb  *rediscache.Client
	blob *s3blob.Client

	// closers run in reverse order on shutdown.
	closers []func()
}

// New wires every component from the validated config. Fails fast on any
// backend it cannot reach.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	registry, wallet, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}

	if err := a.buildAuditLog(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.router = router.New(registry, router.Config{
		MaxRetries:   cfg.Router.MaxRetries,
		RetryDelay:   cfg.Router.RetryDelay.Duration,
		PlaceTimeout: cfg.Router.PlaceTimeout.Duration,
		RateLimit:    cfg.Router.RateLimit,
		RateWindow:   cfg.Router.RateWindow.Duration,
	}, logger)
	a.router.SetAuditLog(a.auditLog)

	if err := a.attachRedis(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.hub = ws.NewHub(logger)
	if a.rdb != nil {
		a.hub.WithBus(rediscache.NewSignalBus(a.rdb))
	}
	a.notifier = notify.NewNotifier(
		cfg.Notify.WebhookTimeout.Duration,
		cfg.Notify.HistorySize,
		logger,
	).WithAuditLog(a.auditLog).WithInAppSink(a.hub)
	a.router.SetNotifier(a.notifier)

	a.poller = tracker.NewPoller(
		a.router.OrderStatus,
		wallet,
		cfg.Tracker.Interval.Duration,
		logger,
	).WithNotifier(a.notifier)
	a.router.SetTracker(a.poller)
	a.closers = append(a.closers, a.poller.Close)

	a.server = server.NewServer(
		server.Config{
			Port:        cfg.Server.Port,
			APIKey:      cfg.Server.APIKey,
			CORSOrigins: cfg.Server.CORSOrigins,
		},
		a.buildHandlers(),
		logger,
	)

	return a, nil
}

// Run serves until the context is cancelled, then drains and releases every
// backend.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Run returns the cancellation cause; that is a normal exit here.
		if err := a.hub.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()

	if err != nil && ctx.Err() != nil {
		// Cancelled on purpose; component errors during teardown are noise.
		return nil
	}
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// close releases backends in reverse acquisition order.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
