package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/departureboard/internal/board"
	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/db"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/common/maintenance"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Polls the configured stations and serves their boards over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runService,
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateWatch(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg.Logging, os.Stdout)
	log.Info("Departure board service starting",
		"stations", len(cfg.Board.Stations),
		"poll_interval", cfg.Board.PollInterval,
		"port", cfg.Server.Port,
		"database", cfg.Database.Driver)

	agg, err := newAggregator(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		store   board.SnapshotStore
		history board.SnapshotHistory
	)
	if cfg.Database.Enabled() {
		database, scheduler, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer database.Close()
		defer scheduler.Stop()
		store = database
		history = database
	} else {
		log.Info("Snapshot storage disabled (no DB_DRIVER)")
	}

	cache := board.NewCache(cfg.Board.CacheSize, cfg.Board.CacheTTL)
	poller := board.NewPoller(agg, cache, store, cfg.Board.Stations, cfg.Board.PollInterval, log)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}
	defer poller.Stop()

	server := board.NewServer(agg, cache, cfg.Board.Stations, os.Stdout, log)
	server.UseHistory(history)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- board.NewWebServer(server.Handler(), log).Serve(ctx, cfg.Server.Port)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		cancel()
		runErr = <-serverErr
	case <-poller.Done():
		runErr = poller.Err()
		cancel()
		<-serverErr
	case runErr = <-serverErr:
		cancel()
	}

	log.Info("Departure board service stopped")
	return runErr
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*db.DB, *maintenance.CleanupScheduler, error) {
	database, err := db.New(cfg.Database.Driver, cfg.Database.ConnectionString(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	scheduler := maintenance.NewCleanupScheduler(database, log, maintenance.SchedulerConfig{
		Interval:  cfg.Maintenance.Interval,
		Retention: cfg.Maintenance.SnapshotRetention,
	})
	if err := scheduler.Start(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("starting cleanup scheduler: %w", err)
	}

	return database, scheduler, nil
}
