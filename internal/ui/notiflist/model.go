package notiflist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/keys"
	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/theme"
)

// OpenMsg is sent when the user opens a notification.
type OpenMsg struct {
	Notification model.Notification
}

// MarkReadMsg asks the parent to mark one notification read.
type MarkReadMsg struct {
	ID string
}

// DeleteMsg asks the parent to delete one notification.
type DeleteMsg struct {
	ID string
}

// Model is the notification list view. It renders whatever the parent
// hands to SetNotifications and never changes the records itself.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	all         []model.Notification
	typeFilters map[model.NotificationType]bool
	width       int
	height      int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	return newWithClock(k, width, height, time.Now)
}

func newWithClock(k *keys.KeyMap, width, height int, now func() time.Time) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:        l,
		keys:        k,
		typeFilters: make(map[model.NotificationType]bool),
		width:       width,
		height:      height,
	}
}

// SetNotifications replaces the rendered records, keeping store order.
func (m *Model) SetNotifications(items []model.Notification) tea.Cmd {
	m.all = items
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	visible := m.Visible()
	items := make([]list.Item, len(visible))
	for i, n := range visible {
		items[i] = Item{Notification: n}
	}
	return m.list.SetItems(items)
}

// Visible returns the records that pass the category filter.
func (m Model) Visible() []model.Notification {
	if len(m.typeFilters) == 0 {
		return m.all
	}
	out := make([]model.Notification, 0, len(m.all))
	for _, n := range m.all {
		if m.typeFilters[n.Type] {
			out = append(out, n)
		}
	}
	return out
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{Notification: n} }

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok || n.IsRead {
			return m, nil
		}
		return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return DeleteMsg{ID: n.ID} }

	case key.Matches(msg, m.keys.FilterMarketplace):
		return m, m.ToggleTypeFilter(model.TypeMarketplace)
	case key.Matches(msg, m.keys.FilterLostAndFound):
		return m, m.ToggleTypeFilter(model.TypeLostAndFound)
	case key.Matches(msg, m.keys.FilterSafety):
		return m, m.ToggleTypeFilter(model.TypeSafety)
	case key.Matches(msg, m.keys.FilterMessage):
		return m, m.ToggleTypeFilter(model.TypeMessage)
	case key.Matches(msg, m.keys.FilterGeneral):
		return m, m.ToggleTypeFilter(model.TypeGeneral)
	case key.Matches(msg, m.keys.ClearFilters):
		return m, m.ClearFilters()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// ToggleTypeFilter shows or hides a category. With no category selected
// every record is shown.
func (m *Model) ToggleTypeFilter(t model.NotificationType) tea.Cmd {
	filters := make(map[model.NotificationType]bool, len(m.typeFilters)+1)
	for k, v := range m.typeFilters {
		filters[k] = v
	}
	if filters[t] {
		delete(filters, t)
	} else {
		filters[t] = true
	}
	m.typeFilters = filters
	return m.refresh()
}

// ClearFilters removes every category filter.
func (m *Model) ClearFilters() tea.Cmd {
	m.typeFilters = make(map[model.NotificationType]bool)
	return m.refresh()
}

// FilterSummary describes the active category filters, or "" when none.
func (m Model) FilterSummary() string {
	if len(m.typeFilters) == 0 {
		return ""
	}
	var labels []string
	for _, t := range model.NotificationTypes {
		if m.typeFilters[t] {
			labels = append(labels, t.Label())
		}
	}
	return fmt.Sprintf("showing: %s", strings.Join(labels, ", "))
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when there is nothing to list.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if len(m.all) > 0 {
		return style.Render("No matching notifications.\nPress 0 to clear filters.")
	}
	return style.Render("No notifications yet")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
