// Package config loads the ptexp configuration from YAML, .env files and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"passthru_parser/internal/logging"
	"passthru_parser/internal/storage"
)

// NATSConfig configures the expression set publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the read API server.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Config holds the application configuration
type Config struct {
	// OutputDir is where .ptExp files are written
	OutputDir string `yaml:"output_dir"`

	// Workers bounds how many input files are processed at once
	Workers int `yaml:"workers"`

	Log     logging.Config `yaml:"log"`
	Storage storage.Config `yaml:"storage"`
	NATS    NATSConfig     `yaml:"nats"`
	API     APIConfig      `yaml:"api"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "ptexp_out",
		Workers:   runtime.NumCPU(),
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
		Storage: storage.DefaultConfig(),
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "passthru.expressions",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

// Load reads the config from a YAML file, falling back to defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //nolint:gosec // config path from known locations
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDefaultPath loads a .env file if present, then the config from
// standard locations.
func LoadFromDefaultPath() (*Config, error) {
	_ = godotenv.Load(".env")

	// Check in order: current dir, ~/.config/passthru_parser/, XDG_CONFIG_HOME
	paths := []string{
		"ptexp.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "passthru_parser", "config.yaml"),
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "passthru_parser", "config.yaml"))
	}

	for _, path := range paths {
		cleanPath := filepath.Clean(path)
		if _, err := os.Stat(cleanPath); err == nil { //nolint:gosec // config path from known locations
			return Load(cleanPath)
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides settings from environment variables.
func (c *Config) applyEnv() {
	c.OutputDir = envOrDefault("PTEXP_OUTPUT_DIR", c.OutputDir)
	c.Workers = envOrDefaultInt("PTEXP_WORKERS", c.Workers)
	c.Log.Level = envOrDefault("PTEXP_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOrDefault("PTEXP_LOG_FORMAT", c.Log.Format)

	c.Storage.SQLite.Path = envOrDefault("PTEXP_SQLITE_PATH", c.Storage.SQLite.Path)

	pg := &c.Storage.Postgres
	pg.Host = envOrDefault("POSTGRES_HOST", pg.Host)
	pg.Port = envOrDefaultInt("POSTGRES_PORT", pg.Port)
	pg.Database = envOrDefault("POSTGRES_DB", pg.Database)
	pg.User = envOrDefault("POSTGRES_USER", pg.User)
	pg.Password = envOrDefault("POSTGRES_PASSWORD", pg.Password)

	ch := &c.Storage.ClickHouse
	ch.Host = envOrDefault("CLICKHOUSE_HOST", ch.Host)
	ch.Port = envOrDefaultInt("CLICKHOUSE_PORT", ch.Port)
	ch.Database = envOrDefault("CLICKHOUSE_DB", ch.Database)
	ch.User = envOrDefault("CLICKHOUSE_USER", ch.User)
	ch.Password = envOrDefault("CLICKHOUSE_PASSWORD", ch.Password)

	c.NATS.URL = envOrDefault("NATS_URL", c.NATS.URL)
	c.API.Port = envOrDefaultInt("PTEXP_API_PORT", c.API.Port)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
