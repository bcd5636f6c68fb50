package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Backend kinds understood by BackendConfig.Kind.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultTokenSecret signs ID tokens when no secret is configured. It is
// public, so tokens signed with it prove nothing.
const DefaultTokenSecret = "campusnotify-dev-secret"

// BackendConfig selects and configures the notification backend.
type BackendConfig struct {
	// Kind is either "sqlite" or "redis".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	// RedisAddr is host:port of the shared redis backend.
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// SessionConfig holds identity settings.
type SessionConfig struct {
	// TokenSecret is the HMAC secret ID tokens are signed with.
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme"`
	ToastSeconds int    `mapstructure:"toast_seconds" yaml:"toast_seconds"`
}

// LogConfig controls the file logger. The terminal belongs to the UI,
// so logs never go to stdout.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// UsesDefaultSecret reports whether tokens are signed with the built-in
// development secret.
func (c *AppConfig) UsesDefaultSecret() bool {
	return c.Session.TokenSecret == DefaultTokenSecret
}

// ConfigDir returns ~/.config/campusnotify, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "campusnotify")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Backend: BackendConfig{
			Kind:       BackendSQLite,
			SQLitePath: filepath.Join(dir, "notifications.db"),
			RedisAddr:  "localhost:6379",
		},
		Session: SessionConfig{
			TokenSecret: DefaultTokenSecret,
		},
		Display: DisplayConfig{
			Theme:        "default",
			ToastSeconds: 4,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "campusnotify.log"),
		},
	}
}

// newViper builds a viper instance with defaults and environment
// overrides (CAMPUSNOTIFY_BACKEND_KIND and so on).
func newViper(path string) *viper.Viper {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("backend.kind", def.Backend.Kind)
	v.SetDefault("backend.sqlite_path", def.Backend.SQLitePath)
	v.SetDefault("backend.redis_addr", def.Backend.RedisAddr)
	v.SetDefault("backend.redis_password", "")
	v.SetDefault("backend.redis_db", 0)
	v.SetDefault("session.token_secret", def.Session.TokenSecret)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.toast_seconds", def.Display.ToastSeconds)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)

	v.SetEnvPrefix("CAMPUSNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// flagBindings maps config keys to the command-line flags that override them.
var flagBindings = map[string]string{
	"backend.kind": "backend",
	"log.level":    "log-level",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus any environment overrides)
// are returned.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWithFlags(path, nil)
}

// LoadConfigWithFlags is LoadConfig with command-line overrides: any flag
// in fs named in flagBindings takes precedence when it was set.
func LoadConfigWithFlags(path string, fs *pflag.FlagSet) (*AppConfig, error) {
	v := newViper(path)

	if fs != nil {
		for key, name := range flagBindings {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.ToastSeconds <= 0 {
		cfg.Display.ToastSeconds = 4
	}
	switch cfg.Backend.Kind {
	case BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("parsing config %s: unknown backend kind %q", path, cfg.Backend.Kind)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("session", cfg.Session)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
