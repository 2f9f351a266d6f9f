package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/world"
)

// Config holds every setting the server needs at boot, loaded from a YAML
// file and then overridden field-by-field by environment variables.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	DatabaseDSN     string        `yaml:"database_dsn"`
	ScriptTimeLimit time.Duration `yaml:"script_time_limit"`
	WorkerPoolSize  int           `yaml:"worker_pool_size"`
	SpawnRoom       world.Id      `yaml:"spawn_room"`
	LogLevel        log.Level     `yaml:"log_level"`
	LogJSON         bool          `yaml:"log_json"`
}

// Default returns a Config with every field set to its production-sane
// default, before a file or environment overrides are applied.
func Default() Config {
	return Config{
		ListenAddr:      ":4000",
		TickInterval:    15 * time.Millisecond,
		ScriptTimeLimit: 50 * time.Millisecond,
		WorkerPoolSize:  4,
		SpawnRoom:       1,
		LogLevel:        log.InfoLevel,
		LogJSON:         false,
	}
}

// Load reads path (if non-empty and present) as YAML over Default, then
// applies REMUD_-prefixed environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("config: database_dsn is required")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("REMUD_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("REMUD_DATABASE_DSN"); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("REMUD_LOG_LEVEL"); ok {
		cfg.LogLevel = log.Level(v)
	}
	if v, ok := os.LookupEnv("REMUD_LOG_JSON"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
	if v, ok := os.LookupEnv("REMUD_TICK_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TickInterval = d
		}
	}
	if v, ok := os.LookupEnv("REMUD_SCRIPT_TIME_LIMIT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ScriptTimeLimit = d
		}
	}
	if v, ok := os.LookupEnv("REMUD_WORKER_POOL_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}
	if v, ok := os.LookupEnv("REMUD_SPAWN_ROOM"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.SpawnRoom = world.Id(n)
		}
	}
}
