package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/campusnotify/internal/keys"
	"github.com/nhle/campusnotify/internal/model"
)

type memSecrets map[string]string

func (s memSecrets) Set(key, value string) error {
	s[key] = value
	return nil
}

func testConfig() model.AppConfig {
	return model.AppConfig{
		Backend: model.BackendConfig{
			Kind:       model.BackendSQLite,
			SQLitePath: "/tmp/notifications.db",
			RedisAddr:  "localhost:6379",
		},
		Display: model.DisplayConfig{ToastSeconds: 4},
		Log:     model.LogConfig{Level: "info"},
	}
}

func newTestModel(probe Prober, secrets SecretStore, path string) Model {
	return New(testConfig(), path, probe, secrets, keys.DefaultKeyMap(), 80, 24)
}

func TestSummaryView(t *testing.T) {
	t.Parallel()
	m := newTestModel(nil, nil, "/home/u/.config/campusnotify/config.yaml")

	view := m.View()
	for _, want := range []string{"Settings", "sqlite", "/tmp/notifications.db", "4s", "info"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestEscClosesSettings(t *testing.T) {
	t.Parallel()
	m := newTestModel(nil, nil, "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(ConfigDoneMsg); !ok {
		t.Error("esc did not produce ConfigDoneMsg")
	}
}

func TestConnectionTest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		probeErr error
		want     string
	}{
		{name: "success", want: "Connection successful"},
		{name: "failure", probeErr: errors.New("dial tcp: refused"), want: "dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var probed model.BackendConfig
			probe := func(_ context.Context, cfg model.BackendConfig) (string, error) {
				probed = cfg
				return "sqlite " + cfg.SQLitePath, tt.probeErr
			}
			m := newTestModel(probe, nil, "")

			m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			if m.Mode() != ModeValidating {
				t.Fatalf("Mode() = %v, want ModeValidating", m.Mode())
			}

			result := m.validate(m.Config().Backend)()
			m, _ = m.Update(result)
			if m.Mode() != ModeValidateResult {
				t.Fatalf("Mode() = %v, want ModeValidateResult", m.Mode())
			}
			if probed.SQLitePath != "/tmp/notifications.db" {
				t.Errorf("probed path = %q, want the configured one", probed.SQLitePath)
			}
			if view := m.View(); !strings.Contains(view, tt.want) {
				t.Errorf("View() missing %q:\n%s", tt.want, view)
			}

			m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
			if m.Mode() != ModeSummary {
				t.Errorf("Mode() = %v, want ModeSummary", m.Mode())
			}
		})
	}
}

func TestConnectionTestWithoutProber(t *testing.T) {
	t.Parallel()
	m := newTestModel(nil, nil, "")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter without a prober returned a command")
	}
	if !strings.Contains(m.View(), "unavailable") {
		t.Errorf("View() does not explain the missing prober:\n%s", m.View())
	}
}

func TestLateValidateResultIgnored(t *testing.T) {
	t.Parallel()
	m := newTestModel(nil, nil, "")

	m, _ = m.Update(ValidateResultMsg{Target: "x"})
	if m.Mode() != ModeSummary {
		t.Errorf("Mode() = %v, want ModeSummary", m.Mode())
	}
}

func TestApplyForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fb      formBindings
		wantErr bool
		check   func(t *testing.T, cfg model.AppConfig)
	}{
		{
			name: "switch to redis",
			fb: formBindings{
				kind: model.BackendRedis, redisAddr: " cache:6380 ", redisDB: "3",
				toastSeconds: "9", logLevel: "debug",
			},
			check: func(t *testing.T, cfg model.AppConfig) {
				if cfg.Backend.Kind != model.BackendRedis || cfg.Backend.RedisAddr != "cache:6380" {
					t.Errorf("backend = %+v", cfg.Backend)
				}
				if cfg.Backend.RedisDB != 3 || cfg.Display.ToastSeconds != 9 || cfg.Log.Level != "debug" {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name:    "bad database",
			fb:      formBindings{kind: model.BackendRedis, redisDB: "x", toastSeconds: "4"},
			wantErr: true,
		},
		{
			name:    "zero toast",
			fb:      formBindings{kind: model.BackendSQLite, redisDB: "0", toastSeconds: "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := applyForm(testConfig(), tt.fb)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyForm() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSaveStoresPasswordInKeyring(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	secrets := memSecrets{}
	m := newTestModel(nil, secrets, path)

	cfg := testConfig()
	cfg.Backend.Kind = model.BackendRedis
	msg := m.save(cfg, "s3cret")()

	saved, ok := msg.(savedInternalMsg)
	if !ok {
		t.Fatalf("save produced %T, want savedInternalMsg", msg)
	}
	if saved.err != nil {
		t.Fatalf("save: %v", saved.err)
	}
	if secrets[redisPasswordKey] != "s3cret" {
		t.Errorf("keyring password = %q, want %q", secrets[redisPasswordKey], "s3cret")
	}
	if saved.cfg.Backend.RedisPassword != "keyring:"+redisPasswordKey {
		t.Errorf("RedisPassword = %q, want a keyring reference", saved.cfg.Backend.RedisPassword)
	}

	loaded, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Backend.Kind != model.BackendRedis {
		t.Errorf("loaded Backend.Kind = %q, want %q", loaded.Backend.Kind, model.BackendRedis)
	}

	m, cmd := m.Update(saved)
	if m.Config().Backend.Kind != model.BackendRedis {
		t.Errorf("Config().Backend.Kind = %q, want %q", m.Config().Backend.Kind, model.BackendRedis)
	}
	if cmd == nil {
		t.Fatal("saved message returned no command")
	}
	if _, ok := cmd().(SavedMsg); !ok {
		t.Error("saved message did not produce SavedMsg")
	}
	if !strings.Contains(m.View(), "stored in keyring") {
		t.Errorf("View() does not show the keyring password:\n%s", m.View())
	}
}

func TestSaveWithoutPasswordKeepsExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	secrets := memSecrets{}
	m := newTestModel(nil, secrets, path)

	cfg := testConfig()
	cfg.Backend.RedisPassword = "keyring:" + redisPasswordKey
	saved := m.save(cfg, "")().(savedInternalMsg)
	if saved.err != nil {
		t.Fatalf("save: %v", saved.err)
	}
	if len(secrets) != 0 {
		t.Errorf("keyring written without a new password: %v", secrets)
	}
	if saved.cfg.Backend.RedisPassword != cfg.Backend.RedisPassword {
		t.Errorf("RedisPassword = %q, want it unchanged", saved.cfg.Backend.RedisPassword)
	}
}

func TestEditOpensForm(t *testing.T) {
	t.Parallel()
	m := newTestModel(nil, nil, "")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if m.Mode() != ModeForm {
		t.Fatalf("Mode() = %v, want ModeForm", m.Mode())
	}
	if cmd == nil {
		t.Error("opening the form returned no init command")
	}
	if m.fb.sqlitePath != "/tmp/notifications.db" || m.fb.toastSeconds != "4" {
		t.Errorf("form not pre-filled: %+v", *m.fb)
	}
	if m.fb.redisPassword != "" {
		t.Error("form pre-filled the password")
	}
}
