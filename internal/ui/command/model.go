package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/farmfresh-notify/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name string
	Arg  string
}

// Commands lists the palette commands offered as suggestions.
var Commands = []string{
	"mark all read",
	"keep unread",
	"clear all",
	"archive",
	"inbox",
	"new",
	"type order",
	"type product",
	"type promotion",
	"type community",
	"type system",
	"type alert",
	"priority low",
	"priority medium",
	"priority high",
	"priority urgent",
	"clear filters",
	"login",
	"logout",
	"quit",
}

// Parse splits raw input into a command name and its argument. Multi-word
// names from Commands win over a shorter prefix.
func Parse(raw string) CommandMsg {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return CommandMsg{}
	}
	joined := strings.Join(fields, " ")
	for _, c := range Commands {
		if joined == c && !strings.HasPrefix(c, "type ") && !strings.HasPrefix(c, "priority ") {
			return CommandMsg{Name: c}
		}
	}
	return CommandMsg{Name: fields[0], Arg: strings.Join(fields[1:], " ")}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			parsed := Parse(m.input.Value())
			m.input.Reset()
			if parsed.Name != "" {
				return m, func() tea.Msg {
					return parsed
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	hint := theme.HelpStyle.Render("tab completes · esc closes")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View(), "", hint)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Blur removes keyboard focus and clears the input.
func (m *Model) Blur() {
	m.input.Reset()
	m.input.Blur()
}
