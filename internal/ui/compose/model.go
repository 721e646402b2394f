package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// ComposedMsg is dispatched when the form is submitted.
type ComposedMsg struct {
	Input model.NotificationInput
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	message     string
	kind        string
	actionURL   string
	actionLabel string
}

// Model is the Bubble Tea model for the new-notification form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{kind: string(model.NotificationTypeOrder)},
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{kind: string(model.NotificationTypeOrder)}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		in := m.input()
		m.form = nil
		return m, func() tea.Msg { return ComposedMsg{Input: in} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
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
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("Your order has shipped").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Message").
				Placeholder("Details shown under the title").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Order", string(model.NotificationTypeOrder)),
					huh.NewOption("Farmer", string(model.NotificationTypeFarmer)),
					huh.NewOption("Admin", string(model.NotificationTypeAdmin)),
				).
				Value(&m.fb.kind),
			huh.NewInput().
				Title("Action route").
				Placeholder("/orders/123 (optional)").
				Value(&m.fb.actionURL).
				Validate(validateOptionalRoute),
			huh.NewInput().
				Title("Action label").
				Placeholder("View order (optional)").
				Value(&m.fb.actionLabel),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) input() model.NotificationInput {
	in := model.NotificationInput{
		Title:       strings.TrimSpace(m.fb.title),
		Message:     strings.TrimSpace(m.fb.message),
		Type:        model.NotificationType(m.fb.kind),
		ActionURL:   strings.TrimSpace(m.fb.actionURL),
		ActionLabel: strings.TrimSpace(m.fb.actionLabel),
	}
	if in.ActionURL != "" && in.ActionLabel == "" {
		in.ActionLabel = "Open"
	}
	return in
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalRoute(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "/") {
		return nil
	}
	return fmt.Errorf("routes start with /")
}
