package model

import "time"

// NotificationType is the canonical category of a notification as stored
// by the backend.
type NotificationType string

const (
	NotificationTypeOrder  NotificationType = "order"
	NotificationTypeFarmer NotificationType = "farmer"
	NotificationTypeAdmin  NotificationType = "admin"
)

// Welcome notification identity. A stored entry matching either value is
// treated as the synthetic welcome message.
const (
	WelcomeID    = "1"
	WelcomeTitle = "Welcome!"
)

// Notification represents an alert surfaced to a marketplace user about
// orders, farmer activity, or system announcements.
type Notification struct {
	// ID is the unique identifier for this notification within a user's list.
	ID string `json:"id"`

	// Title is the short headline shown in the notification center.
	Title string `json:"title"`

	// Message is the human-readable notification body.
	Message string `json:"message"`

	// Type is the canonical category of the notification.
	Type NotificationType `json:"type"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Timestamp is when this notification was created. It never changes
	// after creation and is the primary sort key.
	Timestamp time.Time `json:"created_at"`

	// ActionURL is an optional in-app route opened when the notification
	// is clicked.
	ActionURL string `json:"action_url,omitempty"`

	// ActionLabel is the optional label for the navigation affordance.
	ActionLabel string `json:"action_label,omitempty"`
}

// NotificationInput carries the caller-supplied fields of a new notification.
// The store assigns the id, timestamp and read state.
type NotificationInput struct {
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	ActionURL   string           `json:"action_url,omitempty"`
	ActionLabel string           `json:"action_label,omitempty"`
}

// IsWelcome reports whether n is the synthetic welcome notification. Both the
// id and the title are checked so older persisted shapes are still recognized.
func (n Notification) IsWelcome() bool {
	return n.ID == WelcomeID || n.Title == WelcomeTitle
}

// HasAction reports whether the notification carries a navigation target.
func (n Notification) HasAction() bool {
	return n.ActionURL != ""
}
