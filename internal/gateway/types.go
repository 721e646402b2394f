package gateway

import (
	"encoding/json"
	"time"

	"github.com/nhle/farmfresh-notify/internal/model"
)

// notificationRow is the JSON shape of a row in the notifications table.
type notificationRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	ActionURL   *string   `json:"action_url"`
	ActionLabel *string   `json:"action_label"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		Title:     r.Title,
		Message:   r.Message,
		Type:      model.NotificationType(r.Type),
		Read:      r.Read,
		Timestamp: r.CreatedAt,
	}
	if r.ActionURL != nil {
		n.ActionURL = *r.ActionURL
	}
	if r.ActionLabel != nil {
		n.ActionLabel = *r.ActionLabel
	}
	return n
}

func rowFromModel(userID string, n model.Notification) notificationRow {
	row := notificationRow{
		ID:        n.ID,
		UserID:    userID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Read:      n.Read,
		CreatedAt: n.Timestamp.UTC(),
	}
	if n.ActionURL != "" {
		row.ActionURL = &n.ActionURL
	}
	if n.ActionLabel != "" {
		row.ActionLabel = &n.ActionLabel
	}
	return row
}

// ErrorResponse is the error body returned by the row API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Realtime channel events.
const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
	eventError     = "phx_error"
	eventClose     = "phx_close"
)

// frame is a single realtime protocol message.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	PostgresChanges []changeFilter `json:"postgres_changes"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changesPayload struct {
	Data changeData `json:"data"`
}

type changeData struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record notificationRow `json:"record"`
}
