package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/theme"
)

// SubmitMsg is dispatched when the form is completed. An empty Recipient
// means the signed-in user.
type SubmitMsg struct {
	Recipient    string
	Notification model.Notification
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	recipient     string
	notifType     model.NotificationType
	title         string
	message       string
	relatedPostID string
}

// Model is the Bubble Tea model for composing a notification.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{notifType: model.TypeGeneral},
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{notifType: model.TypeGeneral}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.form = nil
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Notification") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	typeOpts := make([]huh.Option[model.NotificationType], len(model.NotificationTypes))
	for i, t := range model.NotificationTypes {
		typeOpts[i] = huh.NewOption(t.Label(), t)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient").
				Placeholder("user id (blank for yourself)").
				Value(&m.fb.recipient),
			huh.NewSelect[model.NotificationType]().
				Title("Category").
				Options(typeOpts...).
				Value(&m.fb.notifType),
			huh.NewInput().
				Title("Title").
				Placeholder("Short headline").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Message").
				Placeholder("What happened?").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
			huh.NewInput().
				Title("Related post").
				Placeholder("post id (optional)").
				Value(&m.fb.relatedPostID),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	n := buildNotification(*m.fb)
	recipient := strings.TrimSpace(m.fb.recipient)
	return func() tea.Msg { return SubmitMsg{Recipient: recipient, Notification: n} }
}

// buildNotification converts form input into a record ready for Create.
func buildNotification(fb formBindings) model.Notification {
	n := model.Notification{
		Title:   strings.TrimSpace(fb.title),
		Message: strings.TrimSpace(fb.message),
		Type:    fb.notifType,
	}
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}
	if post := strings.TrimSpace(fb.relatedPostID); post != "" {
		n.RelatedPostID = &post
	}
	return n
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

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
