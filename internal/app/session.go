package app

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/credential"
	"github.com/nhle/farmfresh-notify/internal/model"
	centerview "github.com/nhle/farmfresh-notify/internal/ui/center"
	"github.com/nhle/farmfresh-notify/internal/ui/command"
)

// loadSession returns the stored session, or a zero session for a guest.
func loadSession(sessions SessionStore, logger *zap.Logger) credential.Session {
	if sessions == nil {
		return credential.Session{}
	}
	sess, err := sessions.Get()
	if err != nil {
		if !errors.Is(err, credential.ErrNoSession) {
			logger.Warn("failed to read stored session; continuing as guest", zap.Error(err))
		}
		return credential.Session{}
	}
	return sess
}

// createSession switches the store to sess. The store tears down the
// previous identity's subscription before loading the new one.
func (m *Model) createSession(sess credential.Session) tea.Cmd {
	m.session = sess
	m.unreadCount = 0
	m.center = m.freshCenter()
	return m.relay.Initialize(m.store, sess.UserID)
}

// freshCenter drops center-only state that belonged to the previous identity.
func (m Model) freshCenter() centerview.Model {
	c := centerview.New(notifcenter.NewView(m.store), m.keys, 80, 24)
	if m.ready {
		c.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
	}
	return c
}

func (m *Model) signIn(sess credential.Session) tea.Cmd {
	if m.sessions != nil {
		if err := m.sessions.Set(sess); err != nil {
			m.logger.Error("failed to store session", zap.String("user_id", sess.UserID), zap.Error(err))
			m.warning = "Signed in for this run only; the session could not be saved."
		}
	}
	m.statusMsg = "Signed in as " + sess.UserID
	return m.createSession(sess)
}

func (m *Model) signOut() tea.Cmd {
	if m.sessions != nil {
		if err := m.sessions.Delete(); err != nil {
			m.logger.Error("failed to delete session", zap.Error(err))
		}
	}
	m.statusMsg = "Signed out"
	return m.createSession(credential.Session{})
}

func (m *Model) saveSetup(gw model.GatewayConfig) tea.Cmd {
	gw.TimeoutSec = m.cfg.Gateway.TimeoutSec
	m.cfg.Gateway = gw
	if m.configPath == "" {
		return nil
	}
	if err := model.SaveConfig(m.configPath, m.cfg); err != nil {
		m.logger.Error("failed to save config", zap.String("path", m.configPath), zap.Error(err))
		m.warning = fmt.Sprintf("Could not save settings: %v", err)
		return nil
	}
	m.statusMsg = "Settings saved. Restart to connect to the new backend."
	return nil
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case "mark all read":
		return m.center.MarkAllRead()
	case "clear all":
		return m.center.ClearAll()
	case "keep unread":
		// Unlike the center's own toggle this reaches the store, so the
		// unread badge counts it and a guest's cache keeps it.
		n, ok := m.center.Selected()
		if !ok {
			m.statusMsg = "No notification selected"
			return nil
		}
		m.store.MarkNotificationAsUnread(n.ID)
		m.statusMsg = fmt.Sprintf("Keeping %q unread", n.Title)
		return m.syncFromStore()
	case "archive":
		return m.center.ShowArchive(true)
	case "inbox":
		return m.center.ShowArchive(false)
	case "clear filters", "clear":
		return m.center.ClearFilters()
	case "type":
		return m.center.SetType(parseType(c.Arg))
	case "priority":
		return m.center.SetPriority(parsePriority(c.Arg))
	case "new", "compose":
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m.composeView.Start()
	case "login", "signin":
		m.previousView = m.currentView
		m.currentView = ViewAccount
		return m.accountView.StartSignIn()
	case "logout", "signout":
		if !m.session.Valid() {
			return nil
		}
		return m.signOut()
	case "setup", "configure":
		m.previousView = m.currentView
		m.currentView = ViewAccount
		return m.accountView.StartSetup(m.cfg.Gateway)
	case "quit", "q":
		return m.quit()
	default:
		m.statusMsg = fmt.Sprintf("Unknown command %q", c.Name)
		return nil
	}
}

// parseType returns "" (all types) for anything unknown.
func parseType(s string) notifcenter.RichType {
	for _, t := range notifcenter.RichTypes {
		if string(t) == s {
			return t
		}
	}
	return ""
}

// parsePriority returns "" (all priorities) for anything unknown.
func parsePriority(s string) notifcenter.Priority {
	for _, p := range notifcenter.Priorities {
		if string(p) == s {
			return p
		}
	}
	return ""
}
