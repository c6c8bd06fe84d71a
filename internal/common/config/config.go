package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenMaxElapsed bounds token retries when nothing else is set.
const DefaultTokenMaxElapsed = 10 * time.Second

type Config struct {
	Vasttrafik  VasttrafikConfig
	Board       BoardConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Maintenance MaintenanceConfig
	Logging     LoggingConfig
}

// VasttrafikConfig describes how to reach the journey planner
type VasttrafikConfig struct {
	ClientID        string
	ClientSecret    string
	Scope           string // optional device scope
	TokenURL        string
	APIURL          string
	Timeout         time.Duration
	TokenMaxElapsed time.Duration // how long a transient token failure is retried
}

// BoardConfig controls aggregation and the watch service
type BoardConfig struct {
	Stations     []Station
	BoardFile    string
	Timezone     string
	MaxAttempts  int
	PollInterval time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

type Station struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type ServerConfig struct {
	Port int
}

// DatabaseConfig selects the snapshot store. An empty driver disables it.
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type MaintenanceConfig struct {
	SnapshotRetention time.Duration
	Interval          time.Duration
}

type LoggingConfig struct {
	Level      string
	FilePath   string
	DiscordURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Vasttrafik: VasttrafikConfig{
			ClientID:        getEnv("VASTTRAFIK_CLIENT_ID", ""),
			ClientSecret:    getEnv("VASTTRAFIK_CLIENT_SECRET", ""),
			Scope:           getEnv("VASTTRAFIK_SCOPE", ""),
			TokenURL:        getEnv("VASTTRAFIK_TOKEN_URL", "https://api.vasttrafik.se/token"),
			APIURL:          getEnv("VASTTRAFIK_API_URL", "https://api.vasttrafik.se/bin/rest.exe/v2"),
			Timeout:         getDurationEnv("VASTTRAFIK_TIMEOUT", 10*time.Second),
			TokenMaxElapsed: getDurationEnv("VASTTRAFIK_TOKEN_MAX_ELAPSED", 10*time.Second),
		},
		Board: BoardConfig{
			Stations:     parseStations(getEnv("BOARD_STATIONS", "")),
			BoardFile:    getEnv("BOARD_FILE", ""),
			Timezone:     getEnv("BOARD_TIMEZONE", "Europe/Stockholm"),
			MaxAttempts:  getIntEnv("BOARD_MAX_ATTEMPTS", 5),
			PollInterval: getDurationEnv("BOARD_POLL_INTERVAL", 30*time.Second),
			CacheTTL:     getDurationEnv("BOARD_CACHE_TTL", 20*time.Second),
			CacheSize:    getIntEnv("BOARD_CACHE_SIZE", 256),
		},
		Server: ServerConfig{
			Port: getIntEnv("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "")),
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "departureboard"),
		},
		Maintenance: MaintenanceConfig{
			SnapshotRetention: getDurationEnv("SNAPSHOT_RETENTION", 24*time.Hour),
			Interval:          getDurationEnv("MAINTENANCE_INTERVAL", time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", ""),
			DiscordURL: getEnv("LOG_DISCORD_WEBHOOK", ""),
		},
	}

	if cfg.Board.BoardFile != "" {
		stations, err := LoadBoardFile(cfg.Board.BoardFile)
		if err != nil {
			return nil, err
		}
		cfg.Board.Stations = append(cfg.Board.Stations, stations...)
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if err := c.Vasttrafik.Validate(); err != nil {
		return err
	}
	if c.Board.MaxAttempts <= 0 {
		return fmt.Errorf("BOARD_MAX_ATTEMPTS must be positive")
	}
	if _, err := time.LoadLocation(c.Board.Timezone); err != nil {
		return fmt.Errorf("invalid BOARD_TIMEZONE %q: %w", c.Board.Timezone, err)
	}
	return c.Database.Validate()
}

// ValidateWatch additionally checks what the watch service needs.
func (c *Config) ValidateWatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Board.Stations) == 0 {
		return fmt.Errorf("no stations configured (BOARD_STATIONS or BOARD_FILE)")
	}
	if c.Board.PollInterval <= 0 {
		return fmt.Errorf("BOARD_POLL_INTERVAL must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port)
	}
	if c.Database.Enabled() {
		if c.Maintenance.SnapshotRetention <= 0 {
			return fmt.Errorf("SNAPSHOT_RETENTION must be positive")
		}
		if c.Maintenance.Interval <= 0 {
			return fmt.Errorf("MAINTENANCE_INTERVAL must be positive")
		}
	}
	return nil
}

func (c *VasttrafikConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("VASTTRAFIK_CLIENT_ID and VASTTRAFIK_CLIENT_SECRET are required")
	}
	for name, raw := range map[string]string{"VASTTRAFIK_TOKEN_URL": c.TokenURL, "VASTTRAFIK_API_URL": c.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("VASTTRAFIK_TIMEOUT must be positive")
	}
	if c.TokenMaxElapsed <= 0 {
		return fmt.Errorf("VASTTRAFIK_TOKEN_MAX_ELAPSED must be positive")
	}
	return nil
}

// Enabled reports whether snapshots should be stored.
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver != ""
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "", "postgres", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (postgres or sqlite)", c.Driver)
	}
}

// ConnectionString returns DB_DSN when set, otherwise a lib/pq keyword
// string built from the individual settings.
func (c *DatabaseConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return c.DBName + ".db"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// parseStations reads "id" or "id=name" entries separated by commas.
func parseStations(raw string) []Station {
	var stations []Station
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, _ := strings.Cut(part, "=")
		stations = append(stations, Station{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return stations
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
