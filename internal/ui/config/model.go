package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/farmfresh-notify/internal/credential"
	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// Mode identifies the active screen of the account view.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSetup
	ModeSignIn
	ModeVerifying
	ModeVerifyResult
)

// verifyTimeout bounds the sign-in check.
const verifyTimeout = 15 * time.Second

// SetupSavedMsg is sent when the backend connection form is submitted.
type SetupSavedMsg struct {
	Gateway model.GatewayConfig
}

// SignedInMsg is sent when a session has been verified.
type SignedInMsg struct {
	Session credential.Session
}

// DoneMsg is sent when the user leaves the view without changes.
type DoneMsg struct{}

// verifyResultMsg carries the outcome of a sign-in check.
type verifyResultMsg struct {
	session credential.Session
	err     error
}

// Verifier checks that a session can read its notifications.
type Verifier func(ctx context.Context, sess credential.Session) error

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	baseURL     string
	realtimeURL string
	anonKey     string

	userID string
	email  string
	token  string
}

// Model is the Bubble Tea model for backend setup and sign-in.
type Model struct {
	mode    Mode
	form    *huh.Form
	fb      *formBindings
	verify  Verifier
	spinner spinner.Model

	pending   credential.Session
	verifyErr error

	width, height int
}

// New creates an account view. verify may be nil to skip the sign-in check.
func New(verify Verifier, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		fb:      &formBindings{},
		verify:  verify,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Mode returns the active screen.
func (m Model) Mode() Mode {
	return m.mode
}

// StartSetup shows the backend connection form prefilled from current.
func (m *Model) StartSetup(current model.GatewayConfig) tea.Cmd {
	m.fb.baseURL = current.BaseURL
	m.fb.realtimeURL = current.RealtimeURL
	m.fb.anonKey = current.AnonKey
	m.mode = ModeSetup
	m.form = m.buildSetupForm()
	return m.form.Init()
}

// StartSignIn shows the sign-in form.
func (m *Model) StartSignIn() tea.Cmd {
	m.fb.userID = ""
	m.fb.email = ""
	m.fb.token = ""
	m.verifyErr = nil
	m.mode = ModeSignIn
	m.form = m.buildSignInForm()
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case verifyResultMsg:
		if m.mode != ModeVerifying {
			return m, nil
		}
		if msg.err != nil {
			m.verifyErr = msg.err
			m.mode = ModeVerifyResult
			return m, nil
		}
		m.mode = ModeIdle
		sess := msg.session
		return m, func() tea.Msg { return SignedInMsg{Session: sess} }

	case spinner.TickMsg:
		if m.mode == ModeVerifying {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeVerifying:
			if msg.String() == "esc" {
				m.mode = ModeIdle
				return m, func() tea.Msg { return DoneMsg{} }
			}
			return m, nil
		case ModeVerifyResult:
			return m.handleVerifyResultKeys(msg)
		}
	}

	switch m.mode {
	case ModeSetup:
		return m.updateSetupForm(msg)
	case ModeSignIn:
		return m.updateSignInForm(msg)
	}
	return m, nil
}

// --- Setup Form ---

func (m *Model) buildSetupForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Root URL of the FarmFresh backend project").
				Placeholder("https://project.example.co").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Realtime URL").
				Description("Optional; derived from the backend URL when empty").
				Placeholder("wss://project.example.co/realtime/v1/websocket").
				Value(&m.fb.realtimeURL).
				Validate(validateOptionalURL),
			huh.NewInput().
				Title("Public API key").
				Description("The anonymous project key").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.anonKey).
				Validate(validateRequired("API key")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateSetupForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeIdle
		gw := model.GatewayConfig{
			BaseURL:     strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/"),
			RealtimeURL: strings.TrimSpace(m.fb.realtimeURL),
			AnonKey:     strings.TrimSpace(m.fb.anonKey),
		}
		return m, func() tea.Msg { return SetupSavedMsg{Gateway: gw} }
	case huh.StateAborted:
		m.mode = ModeIdle
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// --- Sign-in Form ---

func (m *Model) buildSignInForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User ID").
				Description("Your FarmFresh account id").
				Value(&m.fb.userID).
				Validate(validateRequired("User ID")),
			huh.NewInput().
				Title("Email").
				Description("Optional, shown in the header").
				Value(&m.fb.email),
			huh.NewInput().
				Title("Access token").
				Description("Session token issued at sign-in").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.token).
				Validate(validateRequired("Access token")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateSignInForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.pending = credential.Session{
			UserID:      strings.TrimSpace(m.fb.userID),
			Email:       strings.TrimSpace(m.fb.email),
			AccessToken: strings.TrimSpace(m.fb.token),
		}
		m.mode = ModeVerifying
		return m, tea.Batch(m.spinner.Tick, m.verifySession(m.pending))
	case huh.StateAborted:
		m.mode = ModeIdle
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

func (m Model) verifySession(sess credential.Session) tea.Cmd {
	verify := m.verify
	return func() tea.Msg {
		if verify == nil {
			return verifyResultMsg{session: sess}
		}
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()
		return verifyResultMsg{session: sess, err: verify(ctx, sess)}
	}
}

func (m Model) handleVerifyResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.mode = ModeVerifying
		m.verifyErr = nil
		return m, tea.Batch(m.spinner.Tick, m.verifySession(m.pending))
	case "enter", "esc":
		m.mode = ModeIdle
		m.verifyErr = nil
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, nil
}

// --- View ---

// View renders the account UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeSetup:
		return m.viewForm("Backend Connection", m.form)
	case ModeSignIn:
		return m.viewForm("Sign In", m.form)
	case ModeVerifying:
		return m.viewVerifying()
	case ModeVerifyResult:
		return m.viewVerifyResult()
	default:
		return ""
	}
}

func (m Model) viewForm(title string, f *huh.Form) string {
	if f == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(titleStyle.Render(title) + "\n" + f.View())
}

func (m Model) viewVerifying() string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(fmt.Sprintf(
			"%s Checking your session...\n\nPress esc to cancel.",
			m.spinner.View(),
		))
}

func (m Model) viewVerifyResult() string {
	errStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorRed)

	msg := "unknown error"
	if m.verifyErr != nil {
		msg = m.verifyErr.Error()
	}

	content := errStyle.Render("Sign-in failed") + "\n\n" +
		msg + "\n\n" +
		lipgloss.NewStyle().Foreground(theme.ColorGray).
			Render("r retry | enter/esc back")

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return errors.New("enter a full URL including scheme")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must use http or https")
	}
	return nil
}

func validateOptionalURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return errors.New("enter a full URL including scheme")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("realtime URL must use ws or wss")
	}
	return nil
}
