package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	Discord       DiscordConfig       `yaml:"discord"`
	Hiscores      HiscoresConfig      `yaml:"hiscores"`
	Stats         StatsConfig         `yaml:"stats"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Events        EventsConfig        `yaml:"events"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// DiscordConfig holds Discord configuration.
type DiscordConfig struct {
	Token  string `yaml:"token"`
	Prefix string `yaml:"prefix"`
}

// HiscoresConfig points at the OSRS hiscores API.
type HiscoresConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StatsConfig tunes the stat cache and its retry policy.
type StatsConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// Scheduler backends.
const (
	SchedulerTimer = "timer"
	SchedulerRiver = "river"
)

// SchedulerConfig selects and tunes the boundary scheduler.
type SchedulerConfig struct {
	Backend        string        `yaml:"backend"` // timer|river
	RescanInterval time.Duration `yaml:"rescan_interval"`
	Lookahead      time.Duration `yaml:"lookahead"`
	MaxWorkers     int           `yaml:"max_workers"`
}

// EventsConfig holds event command settings.
type EventsConfig struct {
	ForceUpdateWindow time.Duration `yaml:"force_update_window"`
}

// ConversationConfig holds conversation settings.
type ConversationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	LogLevel       string `yaml:"log_level"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.Discord.Token == "" {
		return nil, errors.New("DISCORD_TOKEN environment variable not set")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"DATABASE_URL":      &cfg.Postgres.DSN,
		"DISCORD_TOKEN":     &cfg.Discord.Token,
		"DISCORD_PREFIX":    &cfg.Discord.Prefix,
		"HISCORES_BASE_URL": &cfg.Hiscores.BaseURL,
		"SCHEDULER_BACKEND": &cfg.Scheduler.Backend,
		"METRICS_ADDRESS":   &cfg.Observability.MetricsAddress,
		"LOG_LEVEL":         &cfg.Observability.LogLevel,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"HISCORES_TIMEOUT":           &cfg.Hiscores.Timeout,
		"STATS_CACHE_TTL":            &cfg.Stats.CacheTTL,
		"STATS_INITIAL_INTERVAL":     &cfg.Stats.InitialInterval,
		"STATS_MAX_INTERVAL":         &cfg.Stats.MaxInterval,
		"STATS_FETCH_TIMEOUT":        &cfg.Stats.FetchTimeout,
		"SCHEDULER_RESCAN_INTERVAL":  &cfg.Scheduler.RescanInterval,
		"SCHEDULER_LOOKAHEAD":        &cfg.Scheduler.Lookahead,
		"EVENTS_FORCE_UPDATE_WINDOW": &cfg.Events.ForceUpdateWindow,
		"CONVERSATION_TIMEOUT":       &cfg.Conversation.Timeout,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*dst = d
	}

	if v := os.Getenv("STATS_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STATS_MAX_ENTRIES value: %w", err)
		}
		cfg.Stats.MaxEntries = n
	}
	if v := os.Getenv("STATS_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STATS_MAX_RETRIES value: %w", err)
		}
		cfg.Stats.MaxRetries = n
	}
	if v := os.Getenv("SCHEDULER_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_MAX_WORKERS value: %w", err)
		}
		cfg.Scheduler.MaxWorkers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Discord.Prefix == "" {
		c.Discord.Prefix = "!event"
	}
	if c.Hiscores.Timeout == 0 {
		c.Hiscores.Timeout = 10 * time.Second
	}
	if c.Stats.CacheTTL == 0 {
		c.Stats.CacheTTL = 20 * time.Minute
	}
	if c.Stats.MaxEntries == 0 {
		c.Stats.MaxEntries = 1000
	}
	if c.Stats.MaxRetries == 0 {
		c.Stats.MaxRetries = 5
	}
	if c.Stats.InitialInterval == 0 {
		c.Stats.InitialInterval = time.Second
	}
	if c.Stats.MaxInterval == 0 {
		c.Stats.MaxInterval = 30 * time.Second
	}
	if c.Stats.FetchTimeout == 0 {
		c.Stats.FetchTimeout = 2 * time.Minute
	}
	if c.Scheduler.Backend == "" {
		c.Scheduler.Backend = SchedulerTimer
	}
	if c.Scheduler.RescanInterval == 0 {
		c.Scheduler.RescanInterval = 24 * time.Hour
	}
	if c.Scheduler.Lookahead == 0 {
		c.Scheduler.Lookahead = 25 * time.Hour
	}
	if c.Scheduler.MaxWorkers == 0 {
		c.Scheduler.MaxWorkers = 10
	}
	if c.Events.ForceUpdateWindow == 0 {
		c.Events.ForceUpdateWindow = 15 * time.Minute
	}
	if c.Conversation.Timeout == 0 {
		c.Conversation.Timeout = 60 * time.Second
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Scheduler.Backend {
	case SchedulerTimer, SchedulerRiver:
	default:
		return fmt.Errorf("unknown scheduler backend %q", c.Scheduler.Backend)
	}
	if c.Scheduler.Lookahead < c.Scheduler.RescanInterval {
		return fmt.Errorf("scheduler lookahead %s must cover the rescan interval %s", c.Scheduler.Lookahead, c.Scheduler.RescanInterval)
	}
	return nil
}
