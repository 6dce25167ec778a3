// Package config provides hierarchical configuration loading for greenlight.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the greenlight service.
type Config struct {
	Server     Server     `yaml:"server"`
	Store      Store      `yaml:"store"`
	Postgres   Postgres   `yaml:"postgres"`
	NATS       NATS       `yaml:"nats"`
	Logging    Logging    `yaml:"logging"`
	Cache      Cache      `yaml:"cache"`
	Engine     Engine     `yaml:"engine"`
	Executors  Executors  `yaml:"executors"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Classifier Classifier `yaml:"classifier"`
	Alerts     []Alert    `yaml:"alerts"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Store selects the persistence backend. "file" keeps JSON documents under
// Dir; "postgres" uses the Postgres section.
type Store struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// NATS holds NATS JetStream configuration. Leave URL empty to run without a
// queue; actions then arrive over HTTP only.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Cache holds the in-process cache configuration.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// Engine holds approval engine configuration. AutoApproveRate and
// MinPrecedents are the learning thresholds: both must be met before a
// request skips human review.
type Engine struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	AutoApproveRate float64       `yaml:"auto_approve_rate"`
	MinPrecedents   int           `yaml:"min_precedents"`
}

// Executors configures the action executor registry. In strict mode every
// action kind the classifier rules name must have a registered executor at
// startup, and an unknown kind at execution time is an error.
type Executors struct {
	Strict bool `yaml:"strict"`
}

// Pipeline holds decision pipeline configuration.
type Pipeline struct {
	Concurrency  int64         `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Classifier holds criticality classifier configuration. RulesPath points at
// an optional YAML rules file; empty means built-in defaults.
type Classifier struct {
	RulesPath string `yaml:"rules_path"`
}

// Alert configures one outbound alert channel by registry name.
type Alert struct {
	Channel  string            `yaml:"channel"`
	Settings map[string]string `yaml:"settings"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Store: Store{
			Backend: "file",
			Dir:     "data",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "greenlight",
		},
		Cache: Cache{
			MaxSizeMB: 32,
		},
		Engine: Engine{
			SweepInterval:   30 * time.Second,
			AutoApproveRate: 0.95,
			MinPrecedents:   10,
		},
		// Dev executors cover only the routine kinds; production configs
		// turn strict on once every kind has a real executor.
		Executors: Executors{
			Strict: false,
		},
		Pipeline: Pipeline{
			Concurrency:  5,
			PollInterval: 5 * time.Second,
		},
	}
}
