package notiflist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/theme"
	"github.com/nhle/campusnotify/internal/ui"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the message body.
func (i Item) Description() string { return i.Notification.Message }

// ItemDelegate renders one notification per list entry: a title line with
// the type glyph, unread dot and age, then the message on a second line.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderLines(it.Notification, index == m.Index(), m.Width()))
}

func (d ItemDelegate) renderLines(n model.Notification, selected bool, width int) string {
	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	icon := theme.TypeStyle(n.Type).Render(theme.TypeIcon(n.Type))

	dot := " "
	if !n.IsRead {
		dot = theme.UnreadDotStyle.Render("●")
	}

	title := n.Title
	if title == "" {
		title = n.Type.Label()
	}
	if !n.IsRead {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	meta := ui.RelativeTime(n.Timestamp, now)
	if n.SenderName != nil && *n.SenderName != "" {
		meta = *n.SenderName + " · " + meta
	}
	metaStr := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(meta)

	first := fmt.Sprintf("%s %s %s  %s", dot, icon, title, metaStr)
	second := "    " + truncate(firstLine(n.Message), width-8)

	if n.IsRead {
		second = theme.DimmedStyle.Render(second)
	}

	line := first + "\n" + second
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate shortens s to at most width cells, marking the cut with "…".
func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
