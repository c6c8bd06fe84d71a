package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VASTTRAFIK_CLIENT_ID", "client")
	t.Setenv("VASTTRAFIK_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.vasttrafik.se/token", cfg.Vasttrafik.TokenURL)
	assert.Equal(t, 5, cfg.Board.MaxAttempts)
	assert.Equal(t, "Europe/Stockholm", cfg.Board.Timezone)
	assert.Equal(t, 30*time.Second, cfg.Board.PollInterval)
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("BOARD_STATIONS", "9021014001760000=Brunnsparken, 9021014004945000")
	t.Setenv("BOARD_POLL_INTERVAL", "1m")
	t.Setenv("BOARD_MAX_ATTEMPTS", "3")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", ":memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []Station{
		{ID: "9021014001760000", Name: "Brunnsparken"},
		{ID: "9021014004945000"},
	}, cfg.Board.Stations)
	assert.Equal(t, time.Minute, cfg.Board.PollInterval)
	assert.Equal(t, 3, cfg.Board.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.ConnectionString())
	assert.NoError(t, cfg.ValidateWatch())
}

func TestInvalidDurationFallsBack(t *testing.T) {
	setValidEnv(t)
	t.Setenv("BOARD_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Board.CacheTTL)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Config)
	}{
		{"missing credentials", func(c *Config) { c.Vasttrafik.ClientSecret = "" }},
		{"relative token url", func(c *Config) { c.Vasttrafik.TokenURL = "/token" }},
		{"zero attempts", func(c *Config) { c.Board.MaxAttempts = 0 }},
		{"zero token retry window", func(c *Config) { c.Vasttrafik.TokenMaxElapsed = 0 }},
		{"unknown timezone", func(c *Config) { c.Board.Timezone = "Mars/Olympus" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			cfg, err := Load()
			require.NoError(t, err)
			tc.setup(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWatchNeedsStations(t *testing.T) {
	setValidEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateWatch())
}

func TestPostgresConnectionString(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "board", Password: "pw", DBName: "departures"}
	assert.Equal(t, "host=db port=5432 user=board password=pw dbname=departures sslmode=disable", c.ConnectionString())
}

func TestLoadBoardFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	content := "stations:\n  - id: \"9021014001760000\"\n    name: Brunnsparken\n  - id: \"9021014004945000\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	setValidEnv(t)
	t.Setenv("BOARD_FILE", path)
	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Board.Stations, 2)
	assert.Equal(t, "Brunnsparken", cfg.Board.Stations[0].Name)
	assert.Equal(t, "9021014004945000", cfg.Board.Stations[1].ID)
}

func TestLoadBoardFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBoardFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("stations:\n  - name: Nowhere\n"), 0644))
	_, err = LoadBoardFile(noID)
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.yaml")
	require.NoError(t, os.WriteFile(corrupt, []byte("stations: [unclosed"), 0644))
	_, err = LoadBoardFile(corrupt)
	assert.Error(t, err)
}
