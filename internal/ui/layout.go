package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusnotify/internal/theme"
)

// Layout manages the multi-panel terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with a title, the unread badge
// and the feed status.
func (l Layout) RenderHeader(title string, unread int, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	if badge := BadgeText(unread); badge != "" {
		titleRendered = lipgloss.JoinHorizontal(
			lipgloss.Top,
			titleRendered,
			theme.BadgeStyle.Render(badge),
		)
	}

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, optional toast, and status bar. The toast
// takes its lines from the bottom of the content area.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	toast string,
	statusBar string,
) string {
	if toast == "" {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			content,
			statusBar,
		)
	}

	contentHeight := l.ContentHeight() - lipgloss.Height(toast)
	if contentHeight < 0 {
		contentHeight = 0
	}
	content = lipgloss.NewStyle().
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, toast),
		statusBar,
	)
}
