package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sanctuary/internal/platform/config"
	"sanctuary/internal/platform/httpserver"
	"sanctuary/internal/platform/logger"
	"sanctuary/internal/platform/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close(log)

	a, err := buildApp(cfg, in, m, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.audit.Close(); err != nil {
			log.Error("audit publisher close failed", "error", err)
		}
	}()

	router := newRouter(cfg, a, in, m, log)
	srv := httpserver.New(cfg.Server.Addr, router, httpserver.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	log.Info("starting sanctuary",
		"addr", cfg.Server.Addr,
		"chain_id", cfg.Vault.ChainID,
		"vault_store", cfg.Storage.Vaults,
		"attestation_store", cfg.Storage.Attestations,
		"audit_store", cfg.Storage.Audit,
		"oracle_enabled", cfg.Oracle.Enabled,
	)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}
