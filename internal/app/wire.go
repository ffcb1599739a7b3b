package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/PatrionDigital/tradewire/internal/audit"
	s3blob "github.com/PatrionDigital/tradewire/internal/blob/s3"
	rediscache "github.com/PatrionDigital/tradewire/internal/cache/redis"
	"github.com/PatrionDigital/tradewire/internal/crypto"
	"github.com/PatrionDigital/tradewire/internal/domain"
	"github.com/PatrionDigital/tradewire/internal/platform"
	"github.com/PatrionDigital/tradewire/internal/platform/kalshi"
	"github.com/PatrionDigital/tradewire/internal/platform/polymarket"
	"github.com/PatrionDigital/tradewire/internal/server"
	"github.com/PatrionDigital/tradewire/internal/server/handler"
	"github.com/PatrionDigital/tradewire/internal/store/postgres"
)

// buildRegistry registers a factory per enabled venue and returns the
// operator wallet address used as the notification recipient.
func (a *App) buildRegistry() (*platform.Registry, string, error) {
	registry := platform.NewRegistry()
	wallet := "operator"

	if a.cfg.Polymarket.Enabled {
		keyHex, err := crypto.ResolveKey(crypto.KeySource{
			Raw:      a.cfg.Wallet.PrivateKey,
			File:     a.cfg.Wallet.EncryptedKeyPath,
			Password: a.cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, "", fmt.Errorf("app: resolve wallet key: %w", err)
		}

		signer, err := crypto.NewSigner(keyHex, a.cfg.Polymarket.ChainID, a.cfg.Polymarket.ExchangeAddress)
		if err != nil {
			return nil, "", fmt.Errorf("app: build order signer: %w", err)
		}
		wallet = signer.Address().Hex()

		baseURL := a.cfg.Polymarket.BaseURL
		registry.Register(domain.VenuePolymarket, func() (domain.VenueAdapter, error) {
			return polymarket.NewClient(baseURL, signer, nil), nil
		})
		a.logger.Info("venue registered",
			slog.String("venue", string(domain.VenuePolymarket)),
			slog.String("wallet", wallet),
		)
	}

	if a.cfg.Kalshi.Enabled {
		pemBytes, err := os.ReadFile(a.cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			return nil, "", fmt.Errorf("app: read kalshi key: %w", err)
		}
		baseURL := a.cfg.Kalshi.BaseURL
		apiKeyID := a.cfg.Kalshi.APIKeyID
		registry.Register(domain.VenueKalshi, func() (domain.VenueAdapter, error) {
			client := kalshi.NewClient(baseURL, apiKeyID)
			if err := client.LoadPrivateKey(pemBytes); err != nil {
				return nil, err
			}
			return client, nil
		})
		a.logger.Info("venue registered", slog.String("venue", string(domain.VenueKalshi)))
	}

	return registry, wallet, nil
}

// buildAuditLog assembles the audit log with its optional durable store and
// archive sink.
func (a *App) buildAuditLog(ctx context.Context) error {
	a.auditLog = audit.NewLog(a.cfg.Audit.MemoryCapacity, a.logger)

	if a.cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      a.cfg.Postgres.DSN,
			Host:     a.cfg.Postgres.Host,
			Port:     a.cfg.Postgres.Port,
			Database: a.cfg.Postgres.Database,
			User:     a.cfg.Postgres.User,
			Password: a.cfg.Postgres.Password,
			SSLMode:  a.cfg.Postgres.SSLMode,
			MaxConns: a.cfg.Postgres.PoolMaxConns,
			MinConns: a.cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fmt.Errorf("app: connect postgres: %w", err)
		}
		a.pg = pg
		a.closers = append(a.closers, pg.Close)

		if a.cfg.Postgres.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("app: run migrations: %w", err)
			}
		}
		a.auditLog.WithPersistence(postgres.NewAuditStore(pg.Pool()))
		a.logger.Info("audit persistence attached")
	}

	if a.cfg.S3.Enabled {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       a.cfg.S3.Endpoint,
			Region:         a.cfg.S3.Region,
			Bucket:         a.cfg.S3.Bucket,
			AccessKey:      a.cfg.S3.AccessKey,
			SecretKey:      a.cfg.S3.SecretKey,
			UseSSL:         a.cfg.S3.UseSSL,
			ForcePathStyle: a.cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("app: connect object store: %w", err)
		}
		a.blob = blob

		a.archiver = audit.NewBlobArchiver(
			s3blob.NewWriter(blob),
			a.cfg.S3.ArchivePrefix,
			a.cfg.S3.ArchiveBatchSize,
			a.logger,
		)
		a.auditLog.WithArchiver(a.archiver)
		a.closers = append(a.closers, a.archiver.Flush)
		a.logger.Info("audit archiver attached", slog.String("bucket", a.cfg.S3.Bucket))
	}

	return nil
}

// attachRedis wires the distributed rate limiter and the execution signal
// bus into the router.
func (a *App) attachRedis(ctx context.Context) error {
	if !a.cfg.Redis.Enabled {
		return nil
	}

	rdb, err := rediscache.New(ctx, rediscache.ClientConfig{
		Addr:       a.cfg.Redis.Addr,
		Password:   a.cfg.Redis.Password,
		DB:         a.cfg.Redis.DB,
		PoolSize:   a.cfg.Redis.PoolSize,
		MaxRetries: a.cfg.Redis.MaxRetries,
		TLSEnabled: a.cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fmt.Errorf("app: connect redis: %w", err)
	}
	a.rdb = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	a.router.SetRateLimiter(rediscache.NewRateLimiter(rdb))
	a.router.SetSignalBus(rediscache.NewSignalBus(rdb))
	a.logger.Info("redis attached", slog.String("addr", a.cfg.Redis.Addr))
	return nil
}

// buildHandlers assembles the HTTP handler set, including health probes for
// every attached backend.
func (a *App) buildHandlers() server.Handlers {
	health := handler.NewHealthHandler()
	if a.pg != nil {
		health.AddCheck("postgres", func(ctx context.Context) error {
			return a.pg.Pool().Ping(ctx)
		})
	}
	if a.rdb != nil {
		health.AddCheck("redis", a.rdb.Ping)
	}
	if a.blob != nil {
		health.AddCheck("s3", a.blob.Health)
	}

	return server.Handlers{
		Execute: handler.NewExecuteHandler(
			a.router, a.cfg.Profiles(), a.cfg.Limits, a.logger),
		Audit:         handler.NewAuditHandler(a.auditLog, a.logger),
		Notifications: handler.NewNotificationHandler(a.notifier, a.logger),
		Health:        health,
		Hub:           a.hub,
	}
}
