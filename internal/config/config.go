// Package config loads settings from a YAML file, a .env file and PM_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr         string         `yaml:"http_addr"`
	GRPCAddr         string         `yaml:"grpc_addr"`
	LogLevel         string         `yaml:"log_level"`
	LogFormat        string         `yaml:"log_format"`
	Currency         string         `yaml:"currency"`
	RegionMatching   string         `yaml:"region_matching"`
	OrderTransitions string         `yaml:"order_transitions"`
	Database         DatabaseConfig `yaml:"database"`
	Redis            RedisConfig    `yaml:"redis"`
	Journal          JournalConfig  `yaml:"journal"`
	Session          SessionConfig  `yaml:"session"`
}

// DatabaseConfig selects the order journal. An empty DSN disables it.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the shared session slot, acceptance claims and item
// locks. An empty address keeps everything in process.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	SessionKey string        `yaml:"session_key"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type JournalConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// SessionConfig points at the session file used when Redis is not configured.
type SessionConfig struct {
	File string `yaml:"file"`
}

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		GRPCAddr:         ":50051",
		LogLevel:         "info",
		LogFormat:        "json",
		Currency:         "₱",
		RegionMatching:   "substring",
		OrderTransitions: "permissive",
		Database:         DatabaseConfig{Driver: "sqlite3"},
		Redis:            RedisConfig{SessionKey: "pm_user", LockTTL: 10 * time.Second},
		Journal:          JournalConfig{Workers: 4, QueueSize: 1024},
	}
}

// Load reads path (optional; a missing file is not an error), then .env, then
// the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PM_HTTP_ADDR":         &c.HTTPAddr,
		"PM_GRPC_ADDR":         &c.GRPCAddr,
		"PM_LOG_LEVEL":         &c.LogLevel,
		"PM_LOG_FORMAT":        &c.LogFormat,
		"PM_CURRENCY":          &c.Currency,
		"PM_REGION_MATCHING":   &c.RegionMatching,
		"PM_ORDER_TRANSITIONS": &c.OrderTransitions,
		"PM_DB_DRIVER":         &c.Database.Driver,
		"PM_DB_DSN":            &c.Database.DSN,
		"PM_REDIS_ADDR":        &c.Redis.Addr,
		"PM_REDIS_SESSION_KEY": &c.Redis.SessionKey,
		"PM_SESSION_FILE":      &c.Session.File,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PM_JOURNAL_WORKERS":    &c.Journal.Workers,
		"PM_JOURNAL_QUEUE_SIZE": &c.Journal.QueueSize,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("PM_REDIS_LOCK_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PM_REDIS_LOCK_TTL: %w", err)
		}
		c.Redis.LockTTL = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.RegionMatching {
	case "", "substring", "token":
	default:
		errs = append(errs, fmt.Errorf("region_matching: unknown mode %q", c.RegionMatching))
	}
	switch c.OrderTransitions {
	case "", "permissive", "forward":
	default:
		errs = append(errs, fmt.Errorf("order_transitions: unknown policy %q", c.OrderTransitions))
	}
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}
	if c.Journal.Workers < 1 {
		errs = append(errs, errors.New("journal.workers: must be at least 1"))
	}
	return errors.Join(errs...)
}
