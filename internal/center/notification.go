// Package center implements the notification center: a richer, local-only
// notification model mapped from the canonical store, with compound
// filtering, pinned-first sorting and presentation actions.
package center

import (
	"time"

	"github.com/nhle/farmfresh-notify/internal/model"
)

// RichType is the category space of the notification center.
type RichType string

const (
	TypeOrder     RichType = "order"
	TypeProduct   RichType = "product"
	TypePromotion RichType = "promotion"
	TypeCommunity RichType = "community"
	TypeSystem    RichType = "system"
	TypeAlert     RichType = "alert"
)

// RichTypes lists every center type in display order.
var RichTypes = []RichType{TypeOrder, TypeProduct, TypePromotion, TypeCommunity, TypeSystem, TypeAlert}

// Priority ranks a center notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Sender identifies who a notification appears to come from.
type Sender struct {
	Name string `json:"name"`
}

// ChannelInApp is the only delivery channel the canonical store knows about.
const ChannelInApp = "in_app"

// RichNotification is the notification center's view of a notification.
// Starred, Pinned, Archived and Priority exist only here and are never
// written back to the canonical store.
type RichNotification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        RichType  `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	Starred     bool      `json:"starred"`
	Pinned      bool      `json:"pinned"`
	Archived    bool      `json:"archived"`
	Priority    Priority  `json:"priority"`
	Sender      Sender    `json:"sender"`
	Channels    []string  `json:"channels"`
	ActionURL   string    `json:"action_url,omitempty"`
	ActionLabel string    `json:"action_label,omitempty"`
}

// typeMapping maps canonical types onto center types.
var typeMapping = map[model.NotificationType]RichType{
	model.NotificationTypeOrder:  TypeOrder,
	model.NotificationTypeFarmer: TypeCommunity,
	model.NotificationTypeAdmin:  TypeSystem,
}

// senderNames gives each center type a display sender.
var senderNames = map[RichType]string{
	TypeOrder:     "Order Updates",
	TypeProduct:   "Product Catalog",
	TypePromotion: "FarmFresh Deals",
	TypeCommunity: "Farmer Community",
	TypeSystem:    "FarmFresh Team",
	TypeAlert:     "FarmFresh Alerts",
}

// MapType maps a canonical type; unknown values map to TypeSystem.
func MapType(t model.NotificationType) RichType {
	if rt, ok := typeMapping[t]; ok {
		return rt
	}
	return TypeSystem
}

// MapAppNotification converts a canonical notification into the center
// model. The mapping is total and lossy: center-only fields always take
// their defaults because the canonical store does not track them.
func MapAppNotification(n model.Notification) RichNotification {
	rt := MapType(n.Type)
	return RichNotification{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        rt,
		Timestamp:   n.Timestamp,
		Read:        n.Read,
		Starred:     false,
		Pinned:      false,
		Archived:    false,
		Priority:    PriorityLow,
		Sender:      Sender{Name: senderNames[rt]},
		Channels:    []string{ChannelInApp},
		ActionURL:   n.ActionURL,
		ActionLabel: n.ActionLabel,
	}
}

// HasAction reports whether the notification links somewhere.
func (n RichNotification) HasAction() bool {
	return n.ActionURL != ""
}
