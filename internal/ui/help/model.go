package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/keys"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// Context describes what the user was looking at when help was opened.
type Context struct {
	Filter notifcenter.Filter

	// Guest is true when no account is signed in.
	Guest bool

	// Session is the session state label shown in the header, e.g. "live".
	Session string
}

var tabHints = map[notifcenter.Status]string{
	notifcenter.StatusAll:     "Every notification in your inbox, pinned first, newest first.",
	notifcenter.StatusUnread:  "Only what you have not opened yet. Press x to mark one read, R for all.",
	notifcenter.StatusStarred: "Notifications you starred with s. Stars are kept until you quit.",
	notifcenter.StatusPinned:  "Notifications you pinned with p. Pinned entries stay on top of every tab.",
}

const archiveHint = "Archived notifications. Press a to move one back to the inbox."

var sessionHints = map[string]string{
	"loading": "Loading your notifications.",
	"live":    "New orders, deliveries and offers appear as they happen.",
	"offline": "Live updates are unavailable; the list is as last loaded. Sign in again to refresh.",
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	ctx    Context
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		ctx:    Context{Filter: notifcenter.Filter{Status: notifcenter.StatusAll}, Guest: true},
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetContext updates the tab and session the hints refer to.
func (m *Model) SetContext(ctx Context) {
	m.ctx = ctx
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Notification Center Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)

	sections := []string{
		title,
		sectionStyle.Render(m.tabTitle()),
		theme.HelpStyle.Render(m.TabHint()),
		"",
		helpText,
		"",
		sectionStyle.Render("Saving"),
		theme.HelpStyle.Render(m.SavingHint()),
	}
	if hint, ok := sessionHints[m.ctx.Session]; ok && !m.ctx.Guest {
		sections = append(sections, "", sectionStyle.Render("Updates · "+m.ctx.Session), theme.HelpStyle.Render(hint))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m Model) tabTitle() string {
	if m.ctx.Filter.ShowArchived {
		return "Archive"
	}
	st := m.ctx.Filter.Status
	if st == "" {
		st = notifcenter.StatusAll
	}
	return strings.ToUpper(string(st[:1])) + string(st[1:]) + " tab"
}

// TabHint explains the active tab and the filters narrowing it.
func (m Model) TabHint() string {
	f := m.ctx.Filter

	hint := archiveHint
	if !f.ShowArchived {
		st := f.Status
		if st == "" {
			st = notifcenter.StatusAll
		}
		hint = tabHints[st]
	}

	var narrowed []string
	if f.Query != "" {
		narrowed = append(narrowed, fmt.Sprintf("matching %q", f.Query))
	}
	if f.Type != "" {
		narrowed = append(narrowed, "type "+string(f.Type))
	}
	if f.Priority != "" {
		narrowed = append(narrowed, "priority "+string(f.Priority))
	}
	if len(narrowed) > 0 {
		hint += "\nShowing only " + strings.Join(narrowed, ", ") + ". Press 0 to clear."
	}
	return hint
}

// SavingHint says which changes outlive the session.
func (m Model) SavingHint() string {
	if m.ctx.Guest {
		return "You are browsing as a guest: notifications and read marks are kept on this device.\n" +
			"Star, pin, archive, priority and delete only change this screen."
	}
	return "Marking read is saved to your account.\n" +
		"Star, pin, archive, priority, delete and mark unread only change this screen."
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
