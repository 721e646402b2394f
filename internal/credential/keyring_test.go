package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_RoundTrip(t *testing.T) {
	s := NewSessions(keyring.NewArrayKeyring(nil))

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, s.CurrentUserID())
	assert.Empty(t, s.AccessToken())

	sess := Session{UserID: "u1", Email: "grower@example.com", AccessToken: "tok"}
	require.NoError(t, s.Set(sess))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, sess, got)
	assert.Equal(t, "u1", s.CurrentUserID())
	assert.Equal(t, "tok", s.AccessToken())

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessions_RejectsAnonymousSession(t *testing.T) {
	s := NewSessions(keyring.NewArrayKeyring(nil))

	err := s.Set(Session{AccessToken: "tok"})
	assert.Error(t, err)
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessions_MalformedItem(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: sessionKey, Data: []byte("not json")}})
	s := NewSessions(ring)

	_, err := s.Get()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
	assert.Empty(t, s.CurrentUserID())
}
