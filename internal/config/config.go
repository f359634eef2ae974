package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mailbridge/internal/bridge"
)

type Config struct {
	Bridge   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// KeyringBackend is auto, keychain or file.
	KeyringBackend string `mapstructure:"keyring_backend" yaml:"keyring_backend,omitempty"`
}

type BridgeConfig struct {
	// Backend is "ole" for the running desktop application or "memory" for an
	// in-process simulation.
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	WarmupRetries int           `mapstructure:"warmup_retries" yaml:"warmup_retries"`
	WarmupDelay   time.Duration `mapstructure:"warmup_delay" yaml:"warmup_delay"`
	Timezone      string        `mapstructure:"timezone" yaml:"timezone,omitempty"`
	// SeedDir holds .eml files delivered to the memory backend's Inbox on start.
	SeedDir string `mapstructure:"seed_dir" yaml:"seed_dir,omitempty"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	RateLimit      float64  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst          int      `mapstructure:"burst" yaml:"burst"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	InsecureNoAuth bool     `mapstructure:"insecure_no_auth" yaml:"insecure_no_auth"`
}

type DefaultsConfig struct {
	EmailLimit          int    `mapstructure:"email_limit" yaml:"email_limit"`
	SearchLimit         int    `mapstructure:"search_limit" yaml:"search_limit"`
	CalendarDays        int    `mapstructure:"calendar_days" yaml:"calendar_days"`
	TaskLimit           int    `mapstructure:"task_limit" yaml:"task_limit"`
	AttachmentCollision string `mapstructure:"attachment_collision" yaml:"attachment_collision"`
}

type AuthConfig struct {
	// Token overrides the keyring entry. Prefer `mailbridge auth token set`.
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	BackendOLE    = "ole"
	BackendMemory = "memory"
)

func DefaultConfig() Config {
	return Config{
		Bridge: BridgeConfig{
			Backend:       BackendOLE,
			WarmupRetries: bridge.DefaultWarmupRetries,
			WarmupDelay:   bridge.DefaultWarmupDelay,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8765",
			RateLimit:    20,
			Burst:        40,
			MaxBodyBytes: 512 << 10,
		},
		Defaults: DefaultsConfig{
			EmailLimit:          10,
			SearchLimit:         100,
			CalendarDays:        7,
			TaskLimit:           100,
			AttachmentCollision: string(bridge.CollisionRename),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func Save(cfg Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := EnsureDir(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.Auth.Token != "" {
		masked.Auth.Token = "****"
	}
	return masked
}

// setDefaults registers every key so that environment overrides apply even
// when the file does not mention it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("bridge.backend", cfg.Bridge.Backend)
	v.SetDefault("bridge.warmup_retries", cfg.Bridge.WarmupRetries)
	v.SetDefault("bridge.warmup_delay", cfg.Bridge.WarmupDelay)
	v.SetDefault("bridge.timezone", cfg.Bridge.Timezone)
	v.SetDefault("bridge.seed_dir", cfg.Bridge.SeedDir)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)
	v.SetDefault("server.burst", cfg.Server.Burst)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.insecure_no_auth", cfg.Server.InsecureNoAuth)

	v.SetDefault("defaults.email_limit", cfg.Defaults.EmailLimit)
	v.SetDefault("defaults.search_limit", cfg.Defaults.SearchLimit)
	v.SetDefault("defaults.calendar_days", cfg.Defaults.CalendarDays)
	v.SetDefault("defaults.task_limit", cfg.Defaults.TaskLimit)
	v.SetDefault("defaults.attachment_collision", cfg.Defaults.AttachmentCollision)

	v.SetDefault("auth.token", cfg.Auth.Token)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("keyring_backend", cfg.KeyringBackend)
}

func Validate(cfg Config) error {
	switch cfg.Bridge.Backend {
	case BackendOLE, BackendMemory:
	default:
		return fmt.Errorf("bridge.backend must be %q or %q, got %q", BackendOLE, BackendMemory, cfg.Bridge.Backend)
	}
	if cfg.Bridge.WarmupRetries < 1 {
		return fmt.Errorf("bridge.warmup_retries must be at least 1")
	}
	if cfg.Bridge.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Bridge.Timezone); err != nil {
			return fmt.Errorf("bridge.timezone: %w", err)
		}
	}
	switch cfg.Defaults.AttachmentCollision {
	case "", "rename", "overwrite":
	default:
		return fmt.Errorf("defaults.attachment_collision must be rename or overwrite, got %q", cfg.Defaults.AttachmentCollision)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}

// ValidateServer checks what `serve` needs on top of Validate.
func ValidateServer(cfg Config, token string) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if token == "" && !cfg.Server.InsecureNoAuth {
		return fmt.Errorf("no API token: run `mailbridge auth token generate` or set server.insecure_no_auth")
	}
	return nil
}

// Location returns the configured timezone, or the system one.
func (c BridgeConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
