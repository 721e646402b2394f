package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/farmfresh-notify/internal/model"
)

const notificationsPath = "/rest/v1/notifications"

// RESTGateway implements Gateway against the hosted backend: rows over the
// REST API and live changes over the realtime websocket.
type RESTGateway struct {
	client      *Client
	realtimeURL string
	apiKey      string
	token       TokenSource
	logger      *zap.Logger
}

// Options configures a RESTGateway.
type Options struct {
	BaseURL     string
	RealtimeURL string
	APIKey      string
	Token       TokenSource
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewRESTGateway creates a gateway for the backend at opts.BaseURL.
func NewRESTGateway(opts Options) *RESTGateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}
	return &RESTGateway{
		client:      NewClient(opts.BaseURL, opts.APIKey, token, opts.Timeout),
		realtimeURL: opts.RealtimeURL,
		apiKey:      opts.APIKey,
		token:       token,
		logger:      logger.Named("gateway"),
	}
}

// FetchNotifications returns all notifications of userID, newest first.
func (g *RESTGateway) FetchNotifications(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")

	var rows []notificationRow
	if err := g.client.Get(ctx, notificationsPath+"?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("fetching notifications for %s: %w", userID, err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// InsertNotification stores n for userID.
func (g *RESTGateway) InsertNotification(
	ctx context.Context,
	userID string,
	n model.Notification,
) error {
	if err := g.client.Post(ctx, notificationsPath, rowFromModel(userID, n), nil); err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	return nil
}

// UpdateReadState sets the read flag on a single row or on all rows of a user.
func (g *RESTGateway) UpdateReadState(
	ctx context.Context,
	target ReadTarget,
	read bool,
) error {
	if err := target.Validate(); err != nil {
		return err
	}

	q := url.Values{}
	if target.ID != "" {
		q.Set("id", "eq."+target.ID)
	} else {
		q.Set("user_id", "eq."+target.UserID)
	}

	body := map[string]bool{"read": read}
	if err := g.client.Patch(ctx, notificationsPath+"?"+q.Encode(), body, nil); err != nil {
		return fmt.Errorf("updating read state (%s): %w", q.Encode(), err)
	}
	return nil
}

// Subscribe opens the realtime change feed for userID's rows.
func (g *RESTGateway) Subscribe(
	ctx context.Context,
	userID string,
	handler EventHandler,
) (Subscription, error) {
	return dialRealtime(ctx, realtimeOptions{
		URL:         g.realtimeURL,
		APIKey:      g.apiKey,
		AccessToken: g.token(),
		UserID:      userID,
		Handler:     handler,
		Logger:      g.logger,
	})
}
