package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.Kind != BackendSQLite {
		t.Errorf("Backend.Kind = %q, want %q", cfg.Backend.Kind, BackendSQLite)
	}
	if cfg.Display.ToastSeconds != 4 {
		t.Errorf("Display.ToastSeconds = %d, want 4", cfg.Display.ToastSeconds)
	}
	if !cfg.UsesDefaultSecret() {
		t.Errorf("UsesDefaultSecret() = false for defaults, secret %q", cfg.Session.TokenSecret)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"backend:",
		"  kind: redis",
		"  redis_addr: cache:6380",
		"  redis_db: 2",
		"display:",
		"  toast_seconds: 0",
		"log:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.Kind != BackendRedis {
		t.Errorf("Backend.Kind = %q, want %q", cfg.Backend.Kind, BackendRedis)
	}
	if cfg.Backend.RedisAddr != "cache:6380" || cfg.Backend.RedisDB != 2 {
		t.Errorf("redis = %s/%d, want cache:6380/2", cfg.Backend.RedisAddr, cfg.Backend.RedisDB)
	}
	if cfg.Display.ToastSeconds != 4 {
		t.Errorf("Display.ToastSeconds = %d, want fallback 4", cfg.Display.ToastSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CAMPUSNOTIFY_BACKEND_KIND", "redis")
	t.Setenv("CAMPUSNOTIFY_SESSION_TOKEN_SECRET", "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.Kind != BackendRedis {
		t.Errorf("Backend.Kind = %q, want %q", cfg.Backend.Kind, BackendRedis)
	}
	if cfg.Session.TokenSecret != "from-env" {
		t.Errorf("Session.TokenSecret = %q, want %q", cfg.Session.TokenSecret, "from-env")
	}
	if cfg.UsesDefaultSecret() {
		t.Error("UsesDefaultSecret() = true with a configured secret")
	}
}

func TestLoadConfigFlagOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("backend", "", "")
	fs.String("log-level", "", "")
	if err := fs.Parse([]string{"--backend", "redis"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := LoadConfigWithFlags(filepath.Join(t.TempDir(), "absent.yaml"), fs)
	if err != nil {
		t.Fatalf("LoadConfigWithFlags: %v", err)
	}
	if cfg.Backend.Kind != BackendRedis {
		t.Errorf("Backend.Kind = %q, want %q", cfg.Backend.Kind, BackendRedis)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, "info")
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CAMPUSNOTIFY_BACKEND_KIND", "firestore")

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig accepted an unknown backend kind")
	}
}

func TestSaveConfigThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.Backend.Kind = BackendRedis
	cfg.Display.ToastSeconds = 7
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Backend.Kind != BackendRedis || got.Display.ToastSeconds != 7 {
		t.Errorf("loaded %+v, want saved values", got)
	}
}
