package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/patchbay-io/patchbay/internal/config"
	"github.com/patchbay-io/patchbay/internal/httpapi"
	"github.com/patchbay-io/patchbay/internal/logging"
	"github.com/patchbay-io/patchbay/internal/manager"
	"github.com/patchbay-io/patchbay/internal/metrics"
	"github.com/patchbay-io/patchbay/internal/store"
	"github.com/patchbay-io/patchbay/internal/vault"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connector host and HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "serve", Writer: os.Stderr})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var keySource vault.KeySource
	switch {
	case cfg.EncryptionKey != "":
		keySource = vault.StaticKeySource{Encoded: cfg.EncryptionKey}
	case cfg.HasHashiCorpVault():
		keySource = vault.HashiCorpKeySource{
			Address:   cfg.VaultAddr,
			Namespace: cfg.VaultNamespace,
			Token:     cfg.VaultToken,
			Mount:     cfg.VaultKeyMount,
			Path:      cfg.VaultKeyPath,
			Field:     cfg.VaultKeyField,
		}
	default:
		return errors.New("no encryption key configured: set PATCHBAY_ENCRYPTION_KEY or VAULT_ADDR and VAULT_TOKEN")
	}
	key, err := keySource.Key(ctx)
	if err != nil {
		return err
	}
	v, err := vault.New(key)
	if err != nil {
		return err
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = store.NewPGStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; instances will not survive a restart")
		st = store.NewMemStore()
	}

	// A crash can leave rows in connecting or connected; nothing is live
	// after a restart, so fold them back to disconnected.
	if err := st.ResetTransientStatuses(ctx); err != nil {
		return err
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}

	m, err := manager.New(manager.Options{
		Store:          st,
		Registry:       reg,
		Vault:          v,
		Logger:         logger,
		Bus:            manager.NewBus(),
		ExecuteTimeout: cfg.ExecuteTimeout,
	})
	if err != nil {
		return err
	}

	srv, err := httpapi.NewEchoServer(cfg, m, reg)
	if err != nil {
		return err
	}

	metricsSrv, metricsErr := metrics.StartServer(ctx, cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsErr != nil {
		g.Go(func() error {
			if err := <-metricsErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		m.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
