package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/credential"
	"github.com/nhle/campusnotify/internal/keys"
	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/theme"
)

// redisPasswordKey is the keyring entry holding the redis password.
const redisPasswordKey = "redis-password"

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeSummary        ConfigMode = iota // Show the active settings
	ModeForm                             // Edit form
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// SavedMsg signals the settings were written to disk.
type SavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Target string
	Err    error
}

type savedInternalMsg struct {
	cfg model.AppConfig
	err error
}

// Prober opens the backend described by cfg, checks it and closes it
// again. It returns a short description of what it reached.
type Prober func(ctx context.Context, cfg model.BackendConfig) (string, error)

// SecretStore is where a newly entered redis password is kept.
type SecretStore interface {
	Set(key, value string) error
}

// formBindings keeps huh's Value() pointers valid across model copies.
type formBindings struct {
	kind          string
	sqlitePath    string
	redisAddr     string
	redisPassword string
	redisDB       string
	toastSeconds  string
	logLevel      string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode    ConfigMode
	cfg     model.AppConfig
	path    string
	probe   Prober
	secrets SecretStore

	form *huh.Form
	fb   *formBindings

	validResult string
	validError  error
	spinner     spinner.Model

	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view for cfg, which was loaded from path.
func New(cfg model.AppConfig, path string, probe Prober, secrets SecretStore, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		cfg:     cfg,
		path:    path,
		probe:   probe,
		secrets: secrets,
		fb:      &formBindings{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Config returns the settings as last saved.
func (m Model) Config() model.AppConfig { return m.cfg }

// Mode returns the current view state.
func (m Model) Mode() ConfigMode { return m.mode }

// Owns reports whether msg is a result of work this view started. Such
// messages must reach the view even while another view is active.
func (m Model) Owns(msg tea.Msg) bool {
	switch msg.(type) {
	case savedInternalMsg, ValidateResultMsg, spinner.TickMsg:
		return true
	}
	return false
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case savedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Settings saved. Backend changes apply on restart."
		saved := msg.cfg
		return m, func() tea.Msg { return SavedMsg{Config: saved} }

	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validResult = msg.Target
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeSummary:
			return m.handleSummaryKeys(msg)
		case ModeValidating:
			if key.Matches(msg, m.keys.Back) {
				m.mode = ModeSummary
			}
			return m, nil
		case ModeValidateResult:
			return m.handleValidateResultKeys(msg)
		}
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleSummaryKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.statusMsg = ""
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "e":
		m.statusMsg = ""
		m.mode = ModeForm
		m.fillForm()
		m.form = m.buildForm()
		return m, m.form.Init()

	case msg.String() == "enter" || msg.String() == "t":
		if m.probe == nil {
			m.statusMsg = "Connection test unavailable"
			return m, nil
		}
		m.statusMsg = ""
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validate(m.cfg.Backend))
	}
	return m, nil
}

func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = ModeSummary
		m.validResult = ""
		m.validError = nil
		return m, nil
	case "r":
		if m.validError != nil {
			m.mode = ModeValidating
			return m, tea.Batch(m.spinner.Tick, m.validate(m.cfg.Backend))
		}
	}
	return m, nil
}

// --- Form ---

func (m *Model) fillForm() {
	*m.fb = formBindings{
		kind:         m.cfg.Backend.Kind,
		sqlitePath:   m.cfg.Backend.SQLitePath,
		redisAddr:    m.cfg.Backend.RedisAddr,
		redisDB:      strconv.Itoa(m.cfg.Backend.RedisDB),
		toastSeconds: strconv.Itoa(m.cfg.Display.ToastSeconds),
		logLevel:     m.cfg.Log.Level,
	}
	// Never pre-fill credentials.
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Description("Where notifications are stored").
				Options(
					huh.NewOption("SQLite - local database file", model.BackendSQLite),
					huh.NewOption("Redis - shared server with live updates", model.BackendRedis),
				).
				Value(&m.fb.kind),
			huh.NewInput().
				Title("SQLite path").
				Value(&m.fb.sqlitePath),
			huh.NewInput().
				Title("Redis address").
				Placeholder("localhost:6379").
				Value(&m.fb.redisAddr),
			huh.NewInput().
				Title("Redis password").
				Description("Leave blank to keep the current password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.redisPassword),
			huh.NewInput().
				Title("Redis database").
				Value(&m.fb.redisDB).
				Validate(validateNumber("Database", 0)),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Toast seconds").
				Description("How long a new notification stays on screen").
				Value(&m.fb.toastSeconds).
				Validate(validateNumber("Toast seconds", 1)),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.fb.logLevel),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		m.mode = ModeSummary
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		m.mode = ModeSummary
		cfg, err := applyForm(m.cfg, *m.fb)
		if err != nil {
			m.statusMsg = err.Error()
			return m, nil
		}
		m.statusMsg = "Saving..."
		return m, m.save(cfg, m.fb.redisPassword)
	case huh.StateAborted:
		m.form = nil
		m.mode = ModeSummary
		return m, nil
	}

	return m, cmd
}

// applyForm returns cfg with the edited fields applied.
func applyForm(cfg model.AppConfig, fb formBindings) (model.AppConfig, error) {
	db, err := strconv.Atoi(strings.TrimSpace(fb.redisDB))
	if err != nil {
		return cfg, fmt.Errorf("redis database must be a number")
	}
	toast, err := strconv.Atoi(strings.TrimSpace(fb.toastSeconds))
	if err != nil || toast < 1 {
		return cfg, fmt.Errorf("toast seconds must be a positive number")
	}

	cfg.Backend.Kind = fb.kind
	cfg.Backend.SQLitePath = strings.TrimSpace(fb.sqlitePath)
	cfg.Backend.RedisAddr = strings.TrimSpace(fb.redisAddr)
	cfg.Backend.RedisDB = db
	cfg.Display.ToastSeconds = toast
	cfg.Log.Level = fb.logLevel
	return cfg, nil
}

// save stores a newly entered password in the keyring, points the config
// at it and writes the config file.
func (m Model) save(cfg model.AppConfig, password string) tea.Cmd {
	path := m.path
	secrets := m.secrets
	return func() tea.Msg {
		if password != "" {
			if secrets == nil {
				return savedInternalMsg{err: fmt.Errorf("no credential store")}
			}
			if err := secrets.Set(redisPasswordKey, password); err != nil {
				return savedInternalMsg{err: fmt.Errorf("saving credential: %w", err)}
			}
			cfg.Backend.RedisPassword = credential.Ref(redisPasswordKey)
		}
		err := model.SaveConfig(path, &cfg)
		return savedInternalMsg{cfg: cfg, err: err}
	}
}

// validate tests the connection for the given backend settings.
func (m Model) validate(cfg model.BackendConfig) tea.Cmd {
	probe := m.probe
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		target, err := probe(ctx, cfg)
		return ValidateResultMsg{Target: target, Err: err}
	}
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeSummary:
		return m.viewSummary()
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return m.frame(m.form.View())
	case ModeValidating:
		return m.frame(fmt.Sprintf(
			"%s Testing connection...\n\nPress esc to cancel.",
			m.spinner.View(),
		))
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return ""
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)
	row := func(name, value string) {
		b.WriteString(label.Render(name))
		b.WriteString(value)
		b.WriteString("\n")
	}

	cfg := m.cfg
	row("Backend", cfg.Backend.Kind)
	if cfg.Backend.Kind == model.BackendRedis {
		row("Redis", fmt.Sprintf("%s db %d", cfg.Backend.RedisAddr, cfg.Backend.RedisDB))
		row("Password", passwordLabel(cfg.Backend.RedisPassword))
	} else {
		row("Database", cfg.Backend.SQLitePath)
	}
	row("Toast", fmt.Sprintf("%ds", cfg.Display.ToastSeconds))
	row("Log level", cfg.Log.Level)
	row("Config file", m.path)

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true).
			Render(m.statusMsg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"e edit | enter test connection | esc back",
	))

	return m.frame(b.String())
}

func (m Model) viewValidateResult() string {
	var content string
	if m.validError != nil {
		content = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed).
			Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		content = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen).
			Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Reached: %s", m.validResult) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}
	return m.frame(content)
}

func (m Model) frame(content string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func passwordLabel(value string) string {
	switch {
	case value == "":
		return "none"
	case credential.IsRef(value):
		return "stored in keyring"
	default:
		return "set in config file"
	}
}

// --- Validators ---

func validateNumber(fieldName string, min int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", fieldName)
		}
		if n < min {
			return fmt.Errorf("%s must be at least %d", fieldName, min)
		}
		return nil
	}
}
