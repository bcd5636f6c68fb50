// Package toast renders the transient notice for a newly arrived
// notification.
package toast

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/theme"
)

const (
	minWidth = 24
	maxWidth = 48
)

// Render draws n as a bordered box tinted with its type color. width is
// the space available; the box never exceeds maxWidth.
func Render(n model.Notification, width int) string {
	w := width - 2
	if w > maxWidth {
		w = maxWidth
	}
	if w < minWidth {
		w = minWidth
	}

	color := theme.TypeColor(n.Type)
	heading := lipgloss.NewStyle().Bold(true).Foreground(color).
		Render(fmt.Sprintf("%s %s", theme.TypeIcon(n.Type), n.Title))

	body := n.Message
	if n.SenderName != nil && *n.SenderName != "" {
		body = fmt.Sprintf("%s\n%s", body, theme.HelpStyle.Render("from "+*n.SenderName))
	}

	return theme.ToastStyle.
		BorderForeground(color).
		Width(w).
		Render(lipgloss.JoinVertical(lipgloss.Left, heading, body))
}
