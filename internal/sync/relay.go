// Package sync bridges notification store activity into the Bubble Tea
// runtime.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/farmfresh-notify/internal/notify"
)

// SessionState represents the lifecycle of the active notification session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionLive
	SessionLoadOnce
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionLive:
		return "live"
	case SessionLoadOnce:
		return "offline"
	default:
		return "idle"
	}
}

// SessionStatus holds the state of the active session.
type SessionStatus struct {
	UserID     string
	State      SessionState
	LastChange time.Time
	LastError  error
}

// StoreChangedMsg is a tea.Msg sent after the store changed.
type StoreChangedMsg struct {
	Change notify.Change
}

// SessionLoadedMsg is a tea.Msg sent when Initialize has finished.
type SessionLoadedMsg struct {
	UserID string
	Live   bool
	Count  int
}

// WriteFailedMsg is a tea.Msg sent when a remote write failed for good.
type WriteFailedMsg struct {
	Op  string
	ID  string
	Err error
}

// initTimeout is the maximum time allowed for the initial load and the
// change-feed join.
const initTimeout = 30 * time.Second

// Relay forwards store changes and write failures to the UI.
type Relay struct {
	msgCh  chan tea.Msg
	mu     gosync.Mutex
	cancel func()
	status SessionStatus
	now    func() time.Time

	// initGen identifies the latest Initialize; older commands that finish
	// late leave the status alone.
	initGen uint64
}

// New creates a relay with no store attached.
func New() *Relay {
	return &Relay{
		msgCh: make(chan tea.Msg, 64),
		now:   time.Now,
	}
}

// Attach starts forwarding changes of s. A previously attached store is
// detached first.
func (r *Relay) Attach(s *notify.Store) {
	cancel := s.Subscribe(func(c notify.Change) {
		r.mu.Lock()
		r.status.LastChange = r.now()
		switch c.Kind {
		case notify.ChangeDisposed, notify.ChangeFeedLost:
			if r.status.State == SessionLive {
				r.status.State = SessionLoadOnce
			}
		}
		r.mu.Unlock()
		r.send(StoreChangedMsg{Change: c})
	})

	r.mu.Lock()
	prev := r.cancel
	r.cancel = cancel
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Detach stops forwarding changes.
func (r *Relay) Detach() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.status = SessionStatus{}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// WriteErrorHandler returns a handler suitable for notify.WithWriteErrorHandler
// that surfaces failures as WriteFailedMsg.
func (r *Relay) WriteErrorHandler() notify.WriteErrorHandler {
	return func(op, id string, err error) {
		r.mu.Lock()
		r.status.LastError = err
		r.mu.Unlock()
		r.send(WriteFailedMsg{Op: op, ID: id, Err: err})
	}
}

// Initialize returns a tea.Cmd that loads the session of userID in the
// background and reports a SessionLoadedMsg.
func (r *Relay) Initialize(s *notify.Store, userID string) tea.Cmd {
	r.mu.Lock()
	r.initGen++
	gen := r.initGen
	r.status.UserID = userID
	r.status.State = SessionLoading
	r.mu.Unlock()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()

		s.Initialize(ctx, userID)

		// Live is read under r.mu so a feed loss reported right after it
		// cannot be overwritten.
		r.mu.Lock()
		live := s.Live()
		switch {
		case gen != r.initGen:
			// Superseded by a later Initialize.
		case live:
			r.status.State = SessionLive
		case userID == "":
			r.status.State = SessionIdle
		default:
			r.status.State = SessionLoadOnce
		}
		r.mu.Unlock()

		return SessionLoadedMsg{
			UserID: userID,
			Live:   live,
			Count:  len(s.Notifications()),
		}
	}
}

// Status returns the state of the active session.
func (r *Relay) Status() SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// send queues msg without blocking the store. The UI re-reads the whole
// store on every message, so a dropped message loses nothing while another
// one is pending.
func (r *Relay) send(msg tea.Msg) {
	select {
	case r.msgCh <- msg:
	default:
	}
}

// WaitForNextChange returns a tea.Cmd that waits for the next relayed
// message. It should be issued again after every message it delivers.
func (r *Relay) WaitForNextChange() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-r.msgCh
		if !ok {
			return nil
		}
		return msg
	}
}
