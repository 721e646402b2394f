package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/credential"
	"github.com/nhle/farmfresh-notify/internal/keys"
	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/notify"
	appsync "github.com/nhle/farmfresh-notify/internal/sync"
	"github.com/nhle/farmfresh-notify/internal/ui"
	centerview "github.com/nhle/farmfresh-notify/internal/ui/center"
	"github.com/nhle/farmfresh-notify/internal/ui/command"
	"github.com/nhle/farmfresh-notify/internal/ui/compose"
	configview "github.com/nhle/farmfresh-notify/internal/ui/config"
	"github.com/nhle/farmfresh-notify/internal/ui/detail"
	helpview "github.com/nhle/farmfresh-notify/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewCenter ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewCompose
	ViewAccount
)

// SessionStore persists the signed-in session.
type SessionStore interface {
	Get() (credential.Session, error)
	Set(sess credential.Session) error
	Delete() error
}

// Options wires the root model to the notification session.
type Options struct {
	Store      *notify.Store
	Relay      *appsync.Relay
	Sessions   SessionStore
	Config     *model.AppConfig
	ConfigPath string
	Verify     configview.Verifier
	Logger     *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout and
// the lifetime of the notification session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	store      *notify.Store
	relay      *appsync.Relay
	sessions   SessionStore
	cfg        *model.AppConfig
	configPath string
	logger     *zap.Logger

	center      centerview.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	composeView compose.Model
	accountView configview.Model

	session     credential.Session
	ready       bool
	unreadCount int
	lastRoute   string
	statusMsg   string
	warning     string
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("app")
	cfg := opts.Config
	if cfg == nil {
		cfg = &model.AppConfig{}
	}

	return Model{
		currentView: ViewCenter,
		keys:        k,
		store:       opts.Store,
		relay:       opts.Relay,
		sessions:    opts.Sessions,
		cfg:         cfg,
		configPath:  opts.ConfigPath,
		logger:      logger,
		session:     loadSession(opts.Sessions, logger),
		center:      centerview.New(notifcenter.NewView(opts.Store), k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		composeView: compose.New(80, 24),
		accountView: configview.New(opts.Verify, 80, 24),
	}
}

// Init attaches the relay, starts the session of the stored identity and,
// when the backend is not configured yet, opens the setup form.
func (m Model) Init() tea.Cmd {
	m.relay.Attach(m.store)

	cmds := []tea.Cmd{
		m.relay.Initialize(m.store, m.session.UserID),
		m.relay.WaitForNextChange(),
	}
	if m.cfg.Gateway.BaseURL == "" {
		cmds = append(cmds, func() tea.Msg { return firstRunMsg{} })
	}
	return tea.Batch(cmds...)
}

// firstRunMsg opens the backend setup form on start.
type firstRunMsg struct{}

// navigatedMsg reports that the route of an opened notification is shown.
type navigatedMsg struct {
	URL string
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.center.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.composeView.SetSize(w, h)
		m.accountView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case firstRunMsg:
		m.previousView = m.currentView
		m.currentView = ViewAccount
		return m, m.accountView.StartSetup(m.cfg.Gateway)

	case appsync.SessionLoadedMsg:
		m.logger.Debug("session loaded",
			zap.String("user_id", msg.UserID),
			zap.Bool("live", msg.Live),
			zap.Int("count", msg.Count),
		)
		return m, m.syncFromStore()

	case appsync.StoreChangedMsg:
		if msg.Change.Kind == notify.ChangeFeedLost {
			m.warning = "Live updates stopped; showing notifications as last loaded."
		}
		return m, tea.Batch(m.syncFromStore(), m.relay.WaitForNextChange())

	case appsync.WriteFailedMsg:
		m.warning = fmt.Sprintf("Couldn't save %s to your account; kept on this device.", opLabel(msg.Op))
		return m, m.relay.WaitForNextChange()

	case centerview.SelectedMsg:
		n, ok := m.currentCenterItem(msg.ID)
		if !ok {
			return m, nil
		}
		m.detail.SetNotification(n)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case centerview.ComposeRequestMsg:
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.Start()

	case detail.BackMsg:
		m.currentView = ViewCenter
		return m, nil

	case detail.OpenActionMsg:
		m.store.SetLastClickedNotificationID(msg.ID)
		url := msg.URL
		return m, func() tea.Msg { return navigatedMsg{URL: url} }

	case navigatedMsg:
		m.lastRoute = msg.URL
		m.statusMsg = "Opened " + msg.URL
		m.currentView = ViewCenter
		if id, ok := m.store.ConsumeLastClicked(); ok {
			m.logger.Debug("opened notification", zap.String("id", id), zap.String("route", msg.URL))
			return m, m.center.Acknowledge(id)
		}
		return m, nil

	case compose.ComposedMsg:
		m.currentView = ViewCenter
		n := m.store.AddNotification(msg.Input)
		m.statusMsg = fmt.Sprintf("Added %q", n.Title)
		return m, nil

	case compose.CancelMsg:
		m.currentView = ViewCenter
		return m, nil

	case command.CommandMsg:
		m.commandView.Blur()
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case configview.SetupSavedMsg:
		m.currentView = ViewCenter
		return m, m.saveSetup(msg.Gateway)

	case configview.SignedInMsg:
		m.currentView = ViewCenter
		return m, m.signIn(msg.Session)

	case configview.DoneMsg:
		m.currentView = ViewCenter
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		m.warning = ""
		m.statusMsg = ""
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work regardless of the active view.
// It returns handled=false when the key belongs to the active view.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}

	if m.currentView == ViewCommand && msg.String() == "esc" {
		m.commandView.Blur()
		m.currentView = m.previousView
		return nil, true
	}

	// Inputs own every other key while focused.
	if m.inputFocused() {
		return nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewCenter {
			return m.quit(), true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.helpView.SetContext(helpview.Context{
			Filter:  m.center.Filter(),
			Guest:   !m.session.Valid(),
			Session: m.relay.Status().State.String(),
		})
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}

	case "L":
		if m.currentView == ViewCenter {
			m.previousView = m.currentView
			m.currentView = ViewAccount
			return m.accountView.StartSignIn(), true
		}

	case "O":
		if m.currentView == ViewCenter && m.session.Valid() {
			return m.signOut(), true
		}
	}

	return nil, false
}

// inputFocused reports whether a text input or form owns the keyboard.
func (m Model) inputFocused() bool {
	switch m.currentView {
	case ViewCompose, ViewAccount, ViewCommand:
		return true
	case ViewCenter:
		return m.center.Searching() || m.center.Confirming()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewCenter:
		m.center, cmd = m.center.Update(msg)
		// Center actions change the local copy without a store event.
		m.unreadCount = m.store.UnreadCount()
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewAccount:
		m.accountView, cmd = m.accountView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "FarmFresh Notifications"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("FarmFresh Notifications [%d unread]", m.unreadCount)
	}
	header := m.layout.RenderHeader(title, m.sessionStatus())
	tabs := m.layout.RenderTabs(m.center.TabLabels(), m.center.StatusIndex())
	content := m.renderContent()

	hints, warn := m.keyHints(), false
	if m.warning != "" {
		hints, warn = m.warning, true
	}
	statusBar := m.layout.RenderStatusBar(hints, warn)

	return m.layout.RenderWithFrame(header, tabs, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewCenter:
		return m.center.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewAccount:
		return m.accountView.View()
	default:
		return ""
	}
}

// sessionStatus describes who is signed in and whether updates are live.
func (m Model) sessionStatus() string {
	who := "guest"
	if m.session.Valid() {
		who = m.session.UserID
		if m.session.Email != "" {
			who = m.session.Email
		}
	}

	st := m.relay.Status()
	if st.State == appsync.SessionIdle {
		return who
	}
	return fmt.Sprintf("%s · %s", who, st.State)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "enter open | esc back | j/k scroll"
	case ViewCompose, ViewAccount:
		return "enter submit | esc cancel"
	}

	if m.statusMsg != "" {
		return m.statusMsg
	}
	if summary := m.center.FilterSummary(); summary != "" {
		return summary + " | 0 clear"
	}
	account := "L sign in"
	if m.session.Valid() {
		account = "O sign out"
	}
	return "q quit | ? help | x read | s star | p pin | a archive | / search | " + account
}

// syncFromStore pulls the canonical list into the center.
func (m *Model) syncFromStore() tea.Cmd {
	m.unreadCount = m.store.UnreadCount()
	cmd := m.center.SetNotifications(m.store.Notifications())
	if m.currentView == ViewDetail {
		if n, ok := m.currentCenterItem(m.detail.Current()); ok {
			m.detail.SetNotification(n)
		}
	}
	return cmd
}

func (m Model) currentCenterItem(id string) (notifcenter.RichNotification, bool) {
	return m.center.Get(id)
}

func (m *Model) quit() tea.Cmd {
	m.relay.Detach()
	m.store.Close()
	return tea.Quit
}

func opLabel(op string) string {
	switch op {
	case "insert":
		return "the new notification"
	case "mark_read":
		return "read status"
	case "mark_all_read":
		return "mark all read"
	default:
		return op
	}
}
