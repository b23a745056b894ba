package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chattysync/internal/events"
	"chattysync/lib/configutil"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type StorageConfig struct {
	DataPath    string `json:"data_path"`
	ArchivePath string `json:"archive_path"`
}

type SharedLoginConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpstreamConfig struct {
	BaseUrl           string  `json:"base_url"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

type ScrapeConfig struct {
	IntervalSeconds    int   `json:"interval_seconds"`
	ExpiryHours        int   `json:"expiry_hours"`
	ParallelPages      int   `json:"parallel_pages"`
	BackfillWorkers    int   `json:"backfill_workers"`
	PostChangeOnAuthor *bool `json:"post_change_on_author"`
	PostChangeOnBody   *bool `json:"post_change_on_body"`
}

type EventsConfig struct {
	Capacity       int `json:"capacity"`
	MaxWaitSeconds int `json:"max_wait_seconds"`
}

type Config struct {
	Storage     StorageConfig     `json:"storage"`
	SharedLogin SharedLoginConfig `json:"shared_login"`
	Upstream    UpstreamConfig    `json:"upstream"`
	Scrape      ScrapeConfig      `json:"scrape"`
	Events      EventsConfig      `json:"events"`
}

var defaultConfig = Config{
	Storage: StorageConfig{DataPath: "data"},
	Upstream: UpstreamConfig{
		BaseUrl:           "https://www.shacknews.com",
		RequestsPerSecond: 10,
		TimeoutSeconds:    30,
	},
	Scrape: ScrapeConfig{
		IntervalSeconds: 5,
		ExpiryHours:     24,
		ParallelPages:   3,
		BackfillWorkers: 4,
	},
	Events: EventsConfig{
		Capacity:       10000,
		MaxWaitSeconds: 60,
	},
}

// Secrets can be supplied through CHATTY_* environment variables or a .env
// file instead of the config file.
type Secrets struct {
	SharedUsername string `envconfig:"CHATTY_SHARED_USERNAME"`
	SharedPassword string `envconfig:"CHATTY_SHARED_PASSWORD"`
}

func (c Config) EventOptions() events.Options {
	opts := events.DefaultOptions()
	if c.Scrape.PostChangeOnAuthor != nil {
		opts.PostChangeOnAuthor = *c.Scrape.PostChangeOnAuthor
	}
	if c.Scrape.PostChangeOnBody != nil {
		opts.PostChangeOnBody = *c.Scrape.PostChangeOnBody
	}
	return opts
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Scrape.IntervalSeconds) * time.Second
}

func (c Config) ExpiryAge() time.Duration {
	return time.Duration(c.Scrape.ExpiryHours) * time.Hour
}

func (c Config) MaxWait() time.Duration {
	return time.Duration(c.Events.MaxWaitSeconds) * time.Second
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("no config file found, using defaults", "path", path)
	} else if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err = configutil.WithDefaults(cfg, defaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("apply config defaults: %w", err)
	}

	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var secrets Secrets
	err = envconfig.Process("", &secrets)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if secrets.SharedUsername != "" {
		cfg.SharedLogin.Username = secrets.SharedUsername
	}
	if secrets.SharedPassword != "" {
		cfg.SharedLogin.Password = secrets.SharedPassword
	}

	if cfg.SharedLogin.Username == "" || cfg.SharedLogin.Password == "" {
		return Config{}, fmt.Errorf("shared_login.username and shared_login.password are required")
	}
	return cfg, nil
}
