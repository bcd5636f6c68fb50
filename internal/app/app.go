package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/notify"
	"github.com/nhle/campusnotify/internal/theme"
	"github.com/nhle/campusnotify/internal/ui"
	"github.com/nhle/campusnotify/internal/ui/command"
	"github.com/nhle/campusnotify/internal/ui/compose"
	"github.com/nhle/campusnotify/internal/ui/config"
	"github.com/nhle/campusnotify/internal/ui/detail"
	helpview "github.com/nhle/campusnotify/internal/ui/help"
	"github.com/nhle/campusnotify/internal/ui/notiflist"
	"github.com/nhle/campusnotify/internal/ui/toast"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewCompose
	ViewSettings
)

// paletteCommands are offered as suggestions in the command palette.
var paletteCommands = []string{
	"reload",
	"read all",
	"compose",
	"dismiss",
	"clear filters",
	"filter marketplace",
	"filter lost_and_found",
	"filter safety",
	"filter message",
	"filter general",
	"whoami",
	"settings",
	"quit",
}

// Model is the root Bubble Tea model. It owns the Synchronizer and routes
// its state into the views.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap
	sync         notify.Synchronizer
	revision     uint64
	list         notiflist.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	composeView  compose.Model
	settingsView config.Model
	hasSettings  bool
	spinner      spinner.Model
	status       string
	ready        bool
}

// New creates the root model around a Synchronizer that has not been
// started yet; Init starts it.
func New(s notify.Synchronizer) Model {
	keys := DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	m := Model{
		currentView: ViewList,
		keys:        keys,
		sync:        s,
		list:        notiflist.New(keys, 80, 24),
		detail:      detail.New(keys, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(paletteCommands, 80, 24),
		composeView: compose.New(80, 24),
		spinner:     sp,
	}
	m.revision = s.Revision()
	m.list.SetNotifications(s.Items())
	return m
}

// WithSettings enables the settings view for cfg, loaded from path. probe
// backs its connection test and secrets receives a new redis password.
func (m Model) WithSettings(cfg model.AppConfig, path string, probe config.Prober, secrets config.SecretStore) Model {
	m.settingsView = config.New(cfg, path, probe, secrets, m.keys, 80, 24)
	m.hasSettings = true
	return m
}

// Init starts the synchronizer and the loading spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.sync.Start(),
		m.spinner.Tick,
	)
}

// Update feeds every message to the Synchronizer first, then handles it
// for the views, then pushes any store change into the list.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var syncCmd tea.Cmd
	m.sync, syncCmd = m.sync.Update(msg)

	next, cmd := m.handle(msg)
	refreshCmd := next.syncViews()

	return next, tea.Batch(syncCmd, cmd, refreshCmd)
}

// syncViews refreshes the list and detail views after a store change.
func (m *Model) syncViews() tea.Cmd {
	if m.sync.Revision() == m.revision {
		return nil
	}
	m.revision = m.sync.Revision()
	items := m.sync.Items()
	m.detail.Refresh(items)
	if _, ok := m.detail.Current(); !ok && m.currentView == ViewDetail {
		m.currentView = ViewList
	}
	return m.list.SetNotifications(items)
}

func (m Model) handle(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.hasSettings {
			var cmd tea.Cmd
			m.settingsView, cmd = m.settingsView.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.sync.State() == notify.StateUninitialized && m.sync.Session().SignedIn() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case config.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case config.SavedMsg:
		m.status = "Settings saved"
		return m, nil

	case notify.SentMsg:
		if msg.Err != nil {
			m.status = "Could not send notification"
		} else {
			m.status = fmt.Sprintf("Sent to %s", msg.Recipient)
		}
		return m, nil

	case notiflist.OpenMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(msg.Notification)
		if !msg.Notification.IsRead {
			return m, m.sync.MarkAsRead(msg.Notification.ID)
		}
		return m, nil

	case notiflist.MarkReadMsg:
		return m, m.sync.MarkAsRead(msg.ID)

	case notiflist.DeleteMsg:
		return m, m.sync.Delete(msg.ID)

	case detail.DeleteMsg:
		m.currentView = ViewList
		return m, m.sync.Delete(msg.ID)

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case compose.SubmitMsg:
		m.currentView = ViewList
		return m, m.sync.Send(msg.Recipient, msg.Notification)

	case compose.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		m.status = ""

		// Global keys that work regardless of current view
		switch {
		case msg.String() == "ctrl+c":
			m.sync = m.sync.Stop()
			return m, tea.Quit

		case m.currentView == ViewCompose,
			m.currentView == ViewSettings && m.settingsView.Mode() == config.ModeForm:
			// The form owns every other key while it is open.

		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewList {
				m.sync = m.sync.Stop()
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewCommand {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Back):
			switch m.currentView {
			case ViewHelp, ViewCommand:
				m.currentView = m.previousView
				return m, nil
			case ViewList:
				m.sync = m.sync.DismissToast()
				return m, nil
			}

		case key.Matches(msg, m.keys.Dismiss):
			if m.currentView == ViewList || m.currentView == ViewDetail {
				m.sync = m.sync.DismissToast()
				return m, nil
			}

		case key.Matches(msg, m.keys.MarkAllRead):
			if m.currentView == ViewList && m.sync.UnreadCount() > 0 {
				var cmd tea.Cmd
				m.sync, cmd = m.sync.MarkAllAsRead()
				return m, cmd
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewList {
				return m, m.sync.Reload()
			}

		case key.Matches(msg, m.keys.Compose):
			if m.currentView == ViewList && m.sync.Session().SignedIn() {
				m.previousView = m.currentView
				m.currentView = ViewCompose
				return m, m.composeView.Start()
			}
		}
	}

	if m.hasSettings && m.currentView != ViewSettings && m.settingsView.Owns(msg) {
		var cmd tea.Cmd
		m.settingsView, cmd = m.settingsView.Update(msg)
		return m, cmd
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Campus Notifications", m.sync.UnreadCount(), m.feedStatus())
	content := m.renderContent()

	toastBox := ""
	if n, ok := m.sync.Toast().Current(); ok && m.currentView != ViewCompose {
		toastBox = toast.Render(n, m.layout.ContentWidth())
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, toastBox, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	if !m.sync.Session().SignedIn() {
		return lipgloss.NewStyle().
			Width(m.layout.ContentWidth()).
			Height(m.layout.ContentHeight()).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Signed out.\n\nRun campusnotify --login <token> to sign in.")
	}

	switch m.currentView {
	case ViewList:
		if m.sync.State() == notify.StateUninitialized && m.sync.Store().Len() == 0 {
			return lipgloss.NewStyle().
				Width(m.layout.ContentWidth()).
				Height(m.layout.ContentHeight()).
				Align(lipgloss.Center, lipgloss.Center).
				Render(m.spinner.View() + " Loading notifications...")
		}
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewSettings:
		return m.settingsView.View()
	default:
		return ""
	}
}

// feedStatus returns a short string describing the session and feed.
func (m Model) feedStatus() string {
	sess := m.sync.Session()
	if !sess.SignedIn() {
		return "signed out"
	}

	var state string
	switch m.sync.State() {
	case notify.StateUninitialized:
		state = "connecting"
	case notify.StateTerminated:
		state = "stopped"
	default:
		state = m.sync.ListenerStatus().State.String()
	}

	who := sess.Email
	if who == "" {
		who = sess.UserID
	}
	return fmt.Sprintf("%s · %s", who, state)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.status != "" && m.currentView == ViewList {
		return m.status
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | tab complete | enter execute | esc back"
	case ViewDetail:
		return "esc back | d delete | j/k scroll"
	case ViewCompose:
		return "enter next | esc cancel"
	case ViewSettings:
		if m.status != "" {
			return m.status
		}
		return "esc back"
	}

	var hints []string
	if summary := m.list.FilterSummary(); summary != "" {
		hints = append(hints, summary, "0 clear")
	}
	hints = append(hints, "q quit", "? help", "enter open", "n new")
	if m.sync.UnreadCount() > 0 {
		hints = append(hints, "A mark all read")
	}
	if m.sync.Toast().Visible() {
		hints = append(hints, "x dismiss")
	}
	return strings.Join(hints, " | ")
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	if name, ok := strings.CutPrefix(cmd, "filter "); ok {
		t, err := model.ParseNotificationType(name)
		if err != nil {
			m.status = err.Error()
			return nil
		}
		return m.list.ToggleTypeFilter(t)
	}

	switch cmd {
	case "reload", "refresh":
		return m.sync.Reload()
	case "read all", "mark all read":
		if m.sync.UnreadCount() == 0 {
			return nil
		}
		var c tea.Cmd
		m.sync, c = m.sync.MarkAllAsRead()
		return c
	case "compose", "new":
		if !m.sync.Session().SignedIn() {
			return nil
		}
		m.previousView = ViewList
		m.currentView = ViewCompose
		return m.composeView.Start()
	case "dismiss":
		m.sync = m.sync.DismissToast()
		return nil
	case "clear filters", "clear":
		return m.list.ClearFilters()
	case "whoami":
		sess := m.sync.Session()
		if !sess.SignedIn() {
			m.status = "signed out"
		} else {
			m.status = fmt.Sprintf("%s (%s)", sess.UserID, sess.Email)
		}
		return nil
	case "settings", "config":
		if !m.hasSettings {
			m.status = "settings unavailable"
			return nil
		}
		m.previousView = ViewList
		m.currentView = ViewSettings
		return nil
	case "quit", "q":
		m.sync = m.sync.Stop()
		return tea.Quit
	default:
		m.status = fmt.Sprintf("unknown command %q", cmd)
		return nil
	}
}
