package notify

import (
	"time"

	"github.com/nhle/farmfresh-notify/internal/model"
)

const (
	welcomeMessage     = "Thanks for joining FarmFresh! Browse fresh produce from farms near you."
	welcomeActionURL   = "/products"
	welcomeActionLabel = "Browse products"
)

// NewWelcomeNotification returns the synthetic first-run notification.
func NewWelcomeNotification(now time.Time) model.Notification {
	return model.Notification{
		ID:          model.WelcomeID,
		Title:       model.WelcomeTitle,
		Message:     welcomeMessage,
		Type:        model.NotificationTypeAdmin,
		Read:        false,
		Timestamp:   now,
		ActionURL:   welcomeActionURL,
		ActionLabel: welcomeActionLabel,
	}
}

// ApplyWelcomePolicy returns the guest list to expose for a given welcome
// state. While the welcome has not been completed, a welcome entry is
// prepended unless one (matched by id or title) is already present. Once
// completed, every matching entry is removed. The input slice is not
// modified. The policy never changes the completion flag itself.
func ApplyWelcomePolicy(list []model.Notification, completed bool, now time.Time) []model.Notification {
	if completed {
		out := make([]model.Notification, 0, len(list))
		for _, n := range list {
			if n.IsWelcome() {
				continue
			}
			out = append(out, n)
		}
		return out
	}

	for _, n := range list {
		if n.IsWelcome() {
			return append([]model.Notification(nil), list...)
		}
	}

	out := make([]model.Notification, 0, len(list)+1)
	out = append(out, NewWelcomeNotification(now))
	return append(out, list...)
}
