package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/departures"
	"github.com/departureboard/internal/vasttrafik"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "departureboard",
	Short:         "Departure boards for Västtrafik stops",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.AddCommand(departuresCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the env file, if present, then the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return config.Load()
}

func newLogger(cfg config.LoggingConfig, console io.Writer) logger.Logger {
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLogLevel(cfg.Level)
	logCfg.ConsoleOut = console
	logCfg.DiscordURL = cfg.DiscordURL
	if cfg.FilePath != "" {
		logCfg.File = true
		logCfg.FilePath = cfg.FilePath
	}
	return logger.NewFromConfig(logCfg)
}

func newAggregator(cfg *config.Config, log logger.Logger) (*departures.Aggregator, error) {
	loc, err := time.LoadLocation(cfg.Board.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Board.Timezone, err)
	}

	client := vasttrafik.New(cfg.Vasttrafik, log)
	return departures.NewAggregator(client, departures.Config{
		MaxAttempts: cfg.Board.MaxAttempts,
		Location:    loc,
	}, log), nil
}
