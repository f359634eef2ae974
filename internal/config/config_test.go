package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mailbridge/internal/bridge"
)

func TestLoadConfigWithEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg := DefaultConfig()
	cfg.Bridge.Backend = BackendMemory
	cfg.Server.Addr = "127.0.0.1:9000"
	cfg.Defaults.EmailLimit = 25

	if _, err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	t.Setenv("MAILBRIDGE_SERVER_ADDR", "0.0.0.0:8080")
	t.Setenv("MAILBRIDGE_BRIDGE_WARMUP_DELAY", "500ms")

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if loaded.Server.Addr != "0.0.0.0:8080" {
		t.Fatalf("expected env override, got %q", loaded.Server.Addr)
	}
	if loaded.Bridge.WarmupDelay != 500*time.Millisecond {
		t.Fatalf("expected warmup delay from env, got %v", loaded.Bridge.WarmupDelay)
	}
	if loaded.Bridge.Backend != BackendMemory {
		t.Fatalf("expected backend from file, got %q", loaded.Bridge.Backend)
	}
	if loaded.Defaults.EmailLimit != 25 {
		t.Fatalf("expected email limit from file, got %d", loaded.Defaults.EmailLimit)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Bridge.Backend != BackendOLE || loaded.Defaults.CalendarDays != 7 {
		t.Fatalf("unexpected defaults: %+v", loaded)
	}
	if err := Validate(loaded); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Bridge.Backend = "imap" }, "bridge.backend"},
		{"retries", func(c *Config) { c.Bridge.WarmupRetries = 0 }, "warmup_retries"},
		{"timezone", func(c *Config) { c.Bridge.Timezone = "Mars/Olympus" }, "bridge.timezone"},
		{"collision", func(c *Config) { c.Defaults.AttachmentCollision = "skip" }, "attachment_collision"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerNeedsToken(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateServer(cfg, ""); err == nil {
		t.Fatal("expected missing token error")
	}
	if err := ValidateServer(cfg, "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Server.InsecureNoAuth = true
	if err := ValidateServer(cfg, ""); err != nil {
		t.Fatalf("insecure_no_auth should allow no token: %v", err)
	}
}

func TestRedactMasksToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Token = "secret"
	if got := Redact(cfg).Auth.Token; got != "****" {
		t.Fatalf("expected masked token, got %q", got)
	}
	if cfg.Auth.Token != "secret" {
		t.Fatal("redact must not modify its input")
	}
}

func TestDefaultWarmupMatchesBridge(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Bridge.WarmupRetries != bridge.DefaultWarmupRetries {
		t.Fatalf("expected %d warmup retries, got %d", bridge.DefaultWarmupRetries, loaded.Bridge.WarmupRetries)
	}
	if loaded.Bridge.WarmupDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms warmup delay, got %v", loaded.Bridge.WarmupDelay)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alt")
	t.Setenv(DirEnv, dir)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join(dir, "config.yaml") {
		t.Fatalf("expected config under %s, got %s", dir, path)
	}

	keyringDir, err := EnsureKeyringDir()
	if err != nil {
		t.Fatalf("ensure keyring dir: %v", err)
	}
	if keyringDir != filepath.Join(dir, "keyring") {
		t.Fatalf("unexpected keyring dir %s", keyringDir)
	}
}
