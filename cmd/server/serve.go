package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/importer"
	"github.com/JonMunkholm/assetconsole/internal/metrics"
	"github.com/JonMunkholm/assetconsole/internal/session"
	"github.com/JonMunkholm/assetconsole/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"session_store", cfg.Session.Store,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions := session.NewManager(store, cfg.Session.TTL)
	client := backend.New(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithUnauthorizedHook(web.TeardownHook(sessions)),
	)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New(cfg.Metrics.Runtime)
	}
	svcCfg := core.ServiceConfig{
		Policy:  core.ParseCancelPolicy(cfg.Workspace.CancelPolicy),
		Auditor: core.NewAuditor(store),
	}
	if rec != nil {
		svcCfg.Recorder = rec
	}
	service := core.NewService(svcCfg)

	tables := core.All()
	slog.Info("tables registered", "count", len(tables))
	for _, def := range tables {
		slog.Debug("table", "key", def.Info.Key, "registration", def.Registration != nil)
	}

	imports := importer.New(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime, cfg.Import.MaxFileSize)
	server := web.NewServer(web.Deps{
		Config:   cfg,
		Service:  service,
		Sessions: sessions,
		Backend:  client,
		Importer: imports,
		Metrics:  rec,
	})

	// Background jobs stop with ctx.
	go service.StartWorkspaceSweeper(ctx, core.SweepConfig{
		IdleTTL:       cfg.Workspace.IdleTTL,
		CheckInterval: cfg.Workspace.SweepInterval,
	})
	go purgeSessions(ctx, sessions, cfg.Session.PurgeInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Wait for active imports to complete (with timeout)
	if status := imports.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := imports.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

// purgeSessions deletes expired sessions every interval until ctx ends.
func purgeSessions(ctx context.Context, sessions *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				slog.Error("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired sessions purged", "count", n)
			}
		}
	}
}
