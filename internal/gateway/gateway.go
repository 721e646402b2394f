package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/farmfresh-notify/internal/model"
)

// AuthError indicates that the backend rejected the session credentials.
// It is returned when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ReadTarget selects which rows a read-state update applies to: a single
// notification by id, or every notification of a user.
type ReadTarget struct {
	ID     string
	UserID string
}

// ByID targets one notification.
func ByID(id string) ReadTarget { return ReadTarget{ID: id} }

// ByUser targets all notifications belonging to userID.
func ByUser(userID string) ReadTarget { return ReadTarget{UserID: userID} }

// Validate reports whether exactly one of ID and UserID is set.
func (t ReadTarget) Validate() error {
	if (t.ID == "") == (t.UserID == "") {
		return errors.New("read target must set exactly one of id or user id")
	}
	return nil
}

// EventHandler receives change-feed events for one user's rows.
// Callbacks run on the subscription's reader goroutine, in delivery order.
type EventHandler struct {
	OnInsert func(model.Notification)
	OnUpdate func(model.Notification)

	// OnClose is called at most once when the feed ends without Unsubscribe,
	// e.g. the server dropped the connection. No events follow it.
	OnClose func(error)
}

// Subscription is a live change feed. Unsubscribe is idempotent; once it
// returns no further handler callbacks are made.
type Subscription interface {
	Unsubscribe() error
}

// Gateway is the remote notification store of record.
type Gateway interface {
	// FetchNotifications returns all notifications of userID, newest first.
	FetchNotifications(ctx context.Context, userID string) ([]model.Notification, error)

	// InsertNotification stores n for userID. The client-assigned id is kept
	// so the change-feed echo can be matched against the local entry.
	InsertNotification(ctx context.Context, userID string, n model.Notification) error

	// UpdateReadState sets the read flag on the rows selected by target.
	UpdateReadState(ctx context.Context, target ReadTarget, read bool) error

	// Subscribe opens a change feed scoped server-side to userID.
	Subscribe(ctx context.Context, userID string, handler EventHandler) (Subscription, error)
}
