// Package daemon wires storage, the game loop and the HTTP server together.
package daemon

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFile is the config file name inside the home directory.
const ConfigFile = "config.toml"

// Config is the daemon configuration, decoded from config.toml.
type Config struct {
	Game    GameConfig    `toml:"game"`
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
}

// GameConfig controls the tick loop. Durations are Go duration strings.
type GameConfig struct {
	TickInterval     string `toml:"tick_interval"`
	AutosaveInterval string `toml:"autosave_interval"`
}

// APIConfig controls the HTTP control plane.
type APIConfig struct {
	Enabled        bool    `toml:"enabled"`
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// StorageConfig controls where saves live.
type StorageConfig struct {
	Dir          string `toml:"dir"` // empty: the home directory
	HistoryLimit int    `toml:"history_limit"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Game: GameConfig{
			TickInterval:     "20ms",
			AutosaveInterval: "3s",
		},
		API: APIConfig{
			Enabled:        true,
			Host:           "127.0.0.1",
			Port:           11480,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Storage: StorageConfig{
			HistoryLimit: 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// HomeDir returns $IDLEBIT_HOME, or ~/.idlebit.
func HomeDir() string {
	if env := os.Getenv("IDLEBIT_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".idlebit"
	}
	return filepath.Join(home, ".idlebit")
}

// LoadConfig reads config.toml from home. A missing file yields the defaults;
// keys absent from the file keep their default values.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(home, ConfigFile)

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// StorageDir returns the directory holding the save database.
func (c Config) StorageDir(home string) string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return home
}

// Addr returns the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// TickInterval parses game.tick_interval, falling back to 20ms.
func (c Config) TickInterval() time.Duration {
	return parseDuration("game.tick_interval", c.Game.TickInterval, 20*time.Millisecond)
}

// AutosaveInterval parses game.autosave_interval, falling back to 3s.
func (c Config) AutosaveInterval() time.Duration {
	return parseDuration("game.autosave_interval", c.Game.AutosaveInterval, 3*time.Second)
}

func parseDuration(key, s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Printf("[daemon] invalid %s %q, using %s", key, s, def)
		return def
	}
	return d
}
