package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateways   []GatewayConfig  `yaml:"gateways"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Dedupe     DedupeConfig     `yaml:"dedupe"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Automation AutomationDefaults `yaml:"automation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host with environment override.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection. When Addr is empty the
// engine degrades to Postgres advisory locks and in-process cooldowns.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig describes one messaging gateway instance. Instances are
// tried in declaration order; disabled instances are skipped.
type GatewayConfig struct {
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-attempt timeout as a duration.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DispatchConfig bounds pacing and the per-phone cooldown window.
type DispatchConfig struct {
	DefaultPacingSeconds int `yaml:"default_pacing_seconds"`
	MinPacingSeconds     int `yaml:"min_pacing_seconds"`
	MaxPacingSeconds     int `yaml:"max_pacing_seconds"`
	CooldownSeconds      int `yaml:"cooldown_seconds"`
}

// Cooldown returns the per-phone burst-protection window.
func (c DispatchConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// DedupeConfig controls how long a dedupe mark blocks re-contact.
type DedupeConfig struct {
	TTLDays int `yaml:"ttl_days"`
}

// TTL returns the mark lifetime as a duration.
func (c DedupeConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// SweepConfig holds bounce sweep tuning.
type SweepConfig struct {
	BatchSize           int  `yaml:"batch_size"`
	ExternalMX          bool `yaml:"external_mx"`
	ProbeTimeoutSeconds int  `yaml:"probe_timeout_seconds"`
	MXCacheHours        int  `yaml:"mx_cache_hours"`
}

// ProbeTimeout returns the per-contact external probe timeout.
func (c SweepConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// MXCacheTTL returns how long MX probe results are cached.
func (c SweepConfig) MXCacheTTL() time.Duration {
	return time.Duration(c.MXCacheHours) * time.Hour
}

// AutomationDefaults seeds per-kind automation rows on first boot and sets
// the scheduler cadence.
type AutomationDefaults struct {
	TickIntervalSeconds int    `yaml:"tick_interval_seconds"`
	StartTime           string `yaml:"start_time"` // "HH:MM"
}

// TickInterval returns the scheduler tick cadence.
func (c AutomationDefaults) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Dispatch.DefaultPacingSeconds == 0 {
		cfg.Dispatch.DefaultPacingSeconds = 40
	}
	if cfg.Dispatch.MinPacingSeconds == 0 {
		cfg.Dispatch.MinPacingSeconds = 5
	}
	if cfg.Dispatch.MaxPacingSeconds == 0 {
		cfg.Dispatch.MaxPacingSeconds = 600
	}
	if cfg.Dispatch.CooldownSeconds == 0 {
		cfg.Dispatch.CooldownSeconds = 10
	}
	if cfg.Dedupe.TTLDays == 0 {
		cfg.Dedupe.TTLDays = 330
	}
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = 200
	}
	if cfg.Sweep.ProbeTimeoutSeconds == 0 {
		cfg.Sweep.ProbeTimeoutSeconds = 5
	}
	if cfg.Sweep.MXCacheHours == 0 {
		cfg.Sweep.MXCacheHours = 4
	}
	if cfg.Automation.TickIntervalSeconds == 0 {
		cfg.Automation.TickIntervalSeconds = 30
	}
	if cfg.Automation.StartTime == "" {
		cfg.Automation.StartTime = "09:00"
	}
	for i := range cfg.Gateways {
		if cfg.Gateways[i].TimeoutSeconds == 0 {
			cfg.Gateways[i].TimeoutSeconds = 15
		}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	for i := range cfg.Gateways {
		// GATEWAY_<NAME>_API_KEY overrides per instance
		if key := os.Getenv("GATEWAY_" + envName(cfg.Gateways[i].Name) + "_API_KEY"); key != "" {
			cfg.Gateways[i].APIKey = key
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func envName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
