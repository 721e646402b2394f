// Package credential keeps the signed-in marketplace session in the system
// keyring.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "farmfresh"
	sessionKey  = "session"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("no stored session")

// Session identifies the signed-in user and the token used for backend calls.
type Session struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"access_token"`
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != ""
}

// Sessions reads and writes the stored session.
type Sessions struct {
	ring keyring.Keyring
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/farmfresh/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("farmfresh-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Open returns the session store backed by the system keyring.
func Open() (*Sessions, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &Sessions{ring: ring}, nil
}

// NewSessions wraps an existing keyring, e.g. keyring.NewArrayKeyring in tests.
func NewSessions(ring keyring.Keyring) *Sessions {
	return &Sessions{ring: ring}
}

// Get returns the stored session or ErrNoSession.
func (s *Sessions) Get() (Session, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("getting session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	if !sess.Valid() {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Set stores sess, replacing any previous session.
func (s *Sessions) Set(sess Session) error {
	if !sess.Valid() {
		return errors.New("session has no user id")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  data,
		Label: "FarmFresh session",
	})
	if err != nil {
		return fmt.Errorf("setting session: %w", err)
	}

	return nil
}

// Delete signs out. Deleting a missing session is not an error.
func (s *Sessions) Delete() error {
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CurrentUserID returns the signed-in user id, or "" for a guest.
func (s *Sessions) CurrentUserID() string {
	sess, err := s.Get()
	if err != nil {
		return ""
	}
	return sess.UserID
}

// AccessToken returns the token of the stored session, or "".
func (s *Sessions) AccessToken() string {
	sess, err := s.Get()
	if err != nil {
		return ""
	}
	return sess.AccessToken
}
