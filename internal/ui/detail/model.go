package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/keys"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// BackMsg signals the parent to navigate back to the center.
type BackMsg struct{}

// OpenActionMsg asks the parent to navigate to the notification's route.
type OpenActionMsg struct {
	ID  string
	URL string
}

// Model is the notification detail view component.
type Model struct {
	n        *notifcenter.RichNotification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Select):
			if m.n != nil && m.n.HasAction() {
				id, url := m.n.ID, m.n.ActionURL
				return m, func() tea.Msg {
					return OpenActionMsg{ID: id, URL: url}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.n == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.n == nil {
		return ""
	}

	n := m.n
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	// Badges line: type + priority + flags
	typeBadge := theme.TypeStyle(string(n.Type)).Render(strings.ToUpper(string(n.Type)))
	priBadge := theme.PriorityStyle(string(n.Priority)).Render(string(n.Priority))
	badges := []string{typeBadge, "  ", priBadge}
	for _, flag := range flags(*n) {
		badges = append(badges, "  ", lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(flag))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, badges...))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-9s", label+":")), valStyle.Render(value))
	}

	sections = append(sections, row("From", n.Sender.Name))
	if !n.Timestamp.IsZero() {
		sections = append(sections, row("Received", n.Timestamp.Local().Format("2006-01-02 15:04")))
	}
	sections = append(sections, row("Channels", strings.Join(n.Channels, ", ")))
	if n.HasAction() {
		sections = append(sections, row("Opens", n.ActionURL))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	if n.HasAction() {
		label := n.ActionLabel
		if label == "" {
			label = "Open"
		}
		sections = append(sections, "", lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen).
			Render("enter → "+label))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func flags(n notifcenter.RichNotification) []string {
	var out []string
	if !n.Read {
		out = append(out, "unread")
	}
	if n.Starred {
		out = append(out, "starred")
	}
	if n.Pinned {
		out = append(out, "pinned")
	}
	if n.Archived {
		out = append(out, "archived")
	}
	return out
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n notifcenter.RichNotification) {
	m.n = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Current returns the id of the displayed notification, or "".
func (m Model) Current() string {
	if m.n == nil {
		return ""
	}
	return m.n.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.n != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
