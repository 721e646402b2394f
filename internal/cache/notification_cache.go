package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/farmfresh-notify/internal/model"
)

const (
	notificationsKeyPrefix = "notifications:"
	welcomeKeyPrefix       = "welcome:"
	guestKey               = "guest_id"
)

// KV is the persistence surface the notification cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NotificationCache persists notification lists and the welcome-completion
// flag per identity. Guests keep their whole list here; authenticated users
// only keep the welcome flag.
type NotificationCache struct {
	kv     KV
	logger *zap.Logger
}

// NewNotificationCache wraps kv with notification-specific accessors.
func NewNotificationCache(kv KV, logger *zap.Logger) *NotificationCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationCache{kv: kv, logger: logger}
}

// GuestKey returns the identifier of the local guest, generating and
// persisting a new one on first use.
func (c *NotificationCache) GuestKey(ctx context.Context) (string, error) {
	id, err := c.kv.Get(ctx, guestKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = "guest-" + uuid.New().String()
	if err := c.kv.Set(ctx, guestKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// Load returns the persisted list for identity. A missing entry yields an
// empty list. A malformed entry is discarded and also yields an empty list.
func (c *NotificationCache) Load(ctx context.Context, identity string) ([]model.Notification, error) {
	key := notificationsKeyPrefix + identity

	raw, err := c.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []model.Notification{}, nil
	}
	if err != nil {
		return nil, err
	}

	var list []model.Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		c.logger.Warn("discarding malformed cached notifications",
			zap.String("identity", identity),
			zap.Error(err),
		)
		if delErr := c.kv.Delete(ctx, key); delErr != nil {
			c.logger.Error("failed to delete malformed cache entry", zap.Error(delErr))
		}
		return []model.Notification{}, nil
	}
	if list == nil {
		list = []model.Notification{}
	}

	return list, nil
}

// Save replaces the persisted list for identity.
func (c *NotificationCache) Save(ctx context.Context, identity string, list []model.Notification) error {
	if list == nil {
		list = []model.Notification{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling notifications: %w", err)
	}
	return c.kv.Set(ctx, notificationsKeyPrefix+identity, string(data))
}

// WelcomeCompleted reports whether identity has dismissed the welcome
// notification. Read errors and malformed values count as not completed.
func (c *NotificationCache) WelcomeCompleted(ctx context.Context, identity string) bool {
	raw, err := c.kv.Get(ctx, welcomeKeyPrefix+identity)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("reading welcome flag", zap.String("identity", identity), zap.Error(err))
		}
		return false
	}

	done, err := strconv.ParseBool(raw)
	if err != nil {
		c.logger.Warn("discarding malformed welcome flag",
			zap.String("identity", identity),
			zap.String("value", raw),
		)
		_ = c.kv.Delete(ctx, welcomeKeyPrefix+identity)
		return false
	}
	return done
}

// SetWelcomeCompleted persists the welcome flag for identity.
func (c *NotificationCache) SetWelcomeCompleted(ctx context.Context, identity string, done bool) error {
	return c.kv.Set(ctx, welcomeKeyPrefix+identity, strconv.FormatBool(done))
}
