package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "greenlight.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GREENLIGHT_PORT")
	setString(&cfg.Server.CORSOrigin, "GREENLIGHT_CORS_ORIGIN")
	setString(&cfg.Store.Backend, "GREENLIGHT_STORE_BACKEND")
	setString(&cfg.Store.Dir, "GREENLIGHT_STORE_DIR")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GREENLIGHT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GREENLIGHT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GREENLIGHT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GREENLIGHT_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "GREENLIGHT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GREENLIGHT_LOG_SERVICE")
	setInt64(&cfg.Cache.MaxSizeMB, "GREENLIGHT_CACHE_SIZE_MB")
	setDuration(&cfg.Engine.SweepInterval, "GREENLIGHT_SWEEP_INTERVAL")
	setFloat64(&cfg.Engine.AutoApproveRate, "GREENLIGHT_AUTO_APPROVE_RATE")
	setInt(&cfg.Engine.MinPrecedents, "GREENLIGHT_MIN_PRECEDENTS")
	setBool(&cfg.Executors.Strict, "GREENLIGHT_EXECUTORS_STRICT")
	setInt64(&cfg.Pipeline.Concurrency, "GREENLIGHT_PIPELINE_CONCURRENCY")
	setDuration(&cfg.Pipeline.PollInterval, "GREENLIGHT_PIPELINE_POLL_INTERVAL")
	setString(&cfg.Classifier.RulesPath, "GREENLIGHT_RULES_PATH")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "file":
		if cfg.Store.Dir == "" {
			return errors.New("store.dir is required for the file backend")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}
	if cfg.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	if cfg.Pipeline.PollInterval <= 0 {
		return errors.New("pipeline.poll_interval must be positive")
	}
	if cfg.Engine.SweepInterval <= 0 {
		return errors.New("engine.sweep_interval must be positive")
	}
	if cfg.Engine.AutoApproveRate <= 0 || cfg.Engine.AutoApproveRate > 1 {
		return errors.New("engine.auto_approve_rate must be in (0, 1]")
	}
	if cfg.Engine.MinPrecedents < 1 {
		return errors.New("engine.min_precedents must be >= 1")
	}
	for i, a := range cfg.Alerts {
		if a.Channel == "" {
			return fmt.Errorf("alerts[%d].channel is required", i)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
