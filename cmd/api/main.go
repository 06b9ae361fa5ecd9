package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seaward/backoffice/internal/blob"
	"github.com/seaward/backoffice/internal/cache"
	"github.com/seaward/backoffice/internal/client"
	clientStore "github.com/seaward/backoffice/internal/client/store"
	"github.com/seaward/backoffice/internal/config"
	"github.com/seaward/backoffice/internal/database"
	"github.com/seaward/backoffice/internal/events"
	"github.com/seaward/backoffice/internal/ferry"
	ferryStore "github.com/seaward/backoffice/internal/ferry/store"
	backofficeHttp "github.com/seaward/backoffice/internal/http"
	clientHandler "github.com/seaward/backoffice/internal/http/client"
	ferryHandler "github.com/seaward/backoffice/internal/http/ferry"
	investorHandler "github.com/seaward/backoffice/internal/http/investor"
	ledgerHandler "github.com/seaward/backoffice/internal/http/ledger"
	"github.com/seaward/backoffice/internal/investor"
	investorStore "github.com/seaward/backoffice/internal/investor/store"
	"github.com/seaward/backoffice/internal/ledger"
	ledgerStore "github.com/seaward/backoffice/internal/ledger/store"
	"github.com/seaward/backoffice/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	observability.InitLogger(cfg.SlogLevel())
	observability.InitMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App.Name, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	snapshots, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	publisher := newPublisher(cfg)
	defer publisher.Close()

	documents, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	var (
		ledgerService   = ledger.NewService(ledgerStore.New(db), snapshots, publisher)
		investorService = investor.NewService(investorStore.New(db), snapshots, cfg.Redis.TTL)
		clientService   = client.NewService(clientStore.New(db), documents)
		ferryService    = ferry.NewService(ferryStore.New(db))
	)

	router := backofficeHttp.New(
		backofficeHttp.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			JWTSecret:      []byte(cfg.Auth.JWTSecret),
			Health:         db.PingContext,
		},
		ledgerHandler.NewHandler(ledgerService),
		investorHandler.NewHandler(investorService, ledgerService),
		clientHandler.NewHandler(clientService),
		ferryHandler.NewHandler(ferryService),
	)

	if cfg.Auth.JWTSecret == "" {
		slog.Warn("AUTH_JWT_SECRET is not set; API routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

type snapshotCache interface {
	investor.Cache
	Close() error
}

func newCache(ctx context.Context, cfg *config.Config) (snapshotCache, error) {
	if cfg.Redis.Addr == "" {
		slog.Info("REDIS_ADDR is not set; investor snapshots are not cached")
		return cache.Noop{}, nil
	}

	c, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return c, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (client.BlobStore, error) {
	if cfg.S3.Bucket == "" {
		slog.Info("S3_BUCKET is not set; client document uploads are disabled")
		return blob.Noop{}, nil
	}

	s, err := blob.NewS3Store(ctx, blob.Options{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		PublicURL:       cfg.S3.PublicURL,
		UsePathStyle:    cfg.S3.UsePathStyle,
		PresignTTL:      cfg.S3.PresignTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring document storage: %w", err)
	}

	return s, nil
}

type eventPublisher interface {
	ledger.Publisher
	Close() error
}

func newPublisher(cfg *config.Config) eventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("KAFKA_BROKERS is not set; ledger events are dropped")
		return events.Noop{}
	}

	return events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}
