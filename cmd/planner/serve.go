package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"truckplan/internal/api"
	"truckplan/internal/config"
	"truckplan/internal/events"
	"truckplan/internal/metrics"
)

func newServeCmd(configPath *string, logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the planner HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(*configPath, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the driver roster
	if err := config.WatchFleet(ctx, a.cfg.Planner.FleetPath, 30*time.Second, func(updated *config.FleetConfig, diff config.FleetDiff) {
		if updated == nil {
			return
		}
		if err := a.db.SyncDriversFromConfig(ctx, updated); err != nil {
			a.logger.Error().Err(err).Msg("failed to reapply fleet config")
			return
		}
		a.bus.Publish(events.Event{Type: events.FleetReloaded})
		a.logger.Info().
			Int("added", len(diff.Added)).
			Int("removed", len(diff.Removed)).
			Int("changed", len(diff.Changed)).
			Int("active", len(updated.GetActiveDrivers())).
			Msg("fleet config applied")
	}); err != nil {
		a.logger.Error().Err(err).Msg("fleet watch failed")
	}

	if a.cfg.Monitoring.HealthCheckPort == 0 {
		a.cfg.Monitoring.HealthCheckPort = 8081
	}
	go a.startHealthServer(ctx, a.cfg.Monitoring.HealthCheckPort)

	if a.cfg.Monitoring.PrometheusEnabled {
		if a.cfg.Monitoring.PrometheusPort == 0 {
			a.cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, a.logger)
	}

	if a.cfg.Backup.Enabled {
		go a.startBackupLoop(ctx)
	}

	srv := api.NewHTTPServer(a.cfg.Server.Port, a.svc, a.cfg.Planner.DefaultView, *a.logger)
	a.logger.Info().Msg("planner started")
	err := srv.Start(ctx)
	a.svc.Cache().Wait()
	return err
}

func (a *app) startBackupLoop(ctx context.Context) {
	if a.cfg.Backup.RetentionDays <= 0 {
		a.cfg.Backup.RetentionDays = 14
	}

	if err := os.MkdirAll(a.cfg.Backup.Path, 0o755); err != nil {
		a.logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	retention := time.Duration(a.cfg.Backup.RetentionDays) * 24 * time.Hour

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		a.runBackupTask(retention)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(a.cfg.BackupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.runBackupTask(retention)
		case <-ctx.Done():
			return
		}
	}
}

func (a *app) runBackupTask(retention time.Duration) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(a.cfg.Backup.Path, fmt.Sprintf("truckplan_%s.db", timestamp))

	a.logger.Info().Str("path", dest).Msg("starting database backup")
	if err := a.db.Backup(dest); err != nil {
		a.logger.Error().Err(err).Msg("backup failed")
	} else {
		a.logger.Info().Msg("backup completed successfully")
	}

	deleted, err := a.db.CleanupBackups(a.cfg.Backup.Path, retention)
	if err != nil {
		a.logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		a.logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func (a *app) startHealthServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := a.db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if a.rdb != nil {
			if err := a.rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if a.erp != nil {
			if err := a.erp.HealthCheck(ctxPing); err != nil {
				http.Error(w, "erp not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
