package center

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// Item wraps a center notification so it can be used in a bubbles/list.
type Item struct {
	Notification notifcenter.RichNotification
}

// FilterValue returns the string used for list filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line.
func (i Item) Description() string {
	parts := []string{
		string(i.Notification.Type),
		string(i.Notification.Priority),
		relativeTime(i.Notification.Timestamp, time.Now()),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification row: flags, badges, title and age on the first
// line, the message on the second.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	now := time.Now
	if d.now != nil {
		now = d.now
	}

	readMark := "●"
	if n.Read {
		readMark = "○"
	}
	flags := flagString(n)

	typeBadge := theme.TypeStyle(string(n.Type)).Render(strings.ToUpper(string(n.Type)))
	priBadge := theme.PriorityStyle(string(n.Priority)).Render(priorityLabel(n.Priority))

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.Timestamp, now()))

	first := fmt.Sprintf("%s %s %s %s %s  %s", readMark, flags, typeBadge, priBadge, n.Title, timeStr)

	msg := n.Message
	if n.HasAction() {
		msg += "  → " + n.ActionLabel
	}
	second := "    " + truncate(msg, m.Width()-6)

	if n.Read {
		first = theme.DimmedStyle.Render(first)
	}
	second = theme.DimmedStyle.Render(second)

	style := theme.ListItemStyle
	if isSelected {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(first)+"\n"+style.Render(second))
}

func flagString(n notifcenter.RichNotification) string {
	star, pin := " ", " "
	if n.Starred {
		star = "★"
	}
	if n.Pinned {
		pin = "⚑"
	}
	return star + pin
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p notifcenter.Priority) string {
	switch p {
	case notifcenter.PriorityUrgent:
		return "!!!"
	case notifcenter.PriorityHigh:
		return "!! "
	case notifcenter.PriorityMedium:
		return "!  "
	default:
		return "   "
	}
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
