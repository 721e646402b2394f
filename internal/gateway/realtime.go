package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// joinTimeout bounds how long Subscribe waits for the channel join reply.
	joinTimeout = 10 * time.Second

	// heartbeatInterval keeps the socket alive through idle proxies.
	heartbeatInterval = 30 * time.Second

	writeWait = 5 * time.Second
)

// realtimeOptions configures a single change-feed connection.
type realtimeOptions struct {
	URL         string
	APIKey      string
	AccessToken string
	UserID      string
	Handler     EventHandler
	Logger      *zap.Logger

	// HeartbeatInterval overrides heartbeatInterval when positive.
	HeartbeatInterval time.Duration
}

// realtimeSubscription is a websocket connection joined to one user's
// notifications channel.
type realtimeSubscription struct {
	conn    *websocket.Conn
	topic   string
	handler EventHandler
	logger  *zap.Logger

	writeMu gosync.Mutex
	ref     atomic.Int64

	closed    atomic.Bool
	closeOnce gosync.Once
	stopCh    chan struct{}
	wg        gosync.WaitGroup
}

func topicFor(userID string) string {
	return "realtime:public:notifications:user_id=eq." + userID
}

// dialRealtime connects, joins the user's channel and starts the reader and
// heartbeat goroutines. It returns once the join has been acknowledged.
func dialRealtime(ctx context.Context, opts realtimeOptions) (*realtimeSubscription, error) {
	if opts.URL == "" {
		return nil, errors.New("realtime url is not configured")
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime url: %w", err)
	}
	q := u.Query()
	if opts.APIKey != "" {
		q.Set("apikey", opts.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &realtimeSubscription{
		conn:    conn,
		topic:   topicFor(opts.UserID),
		handler: opts.Handler,
		logger:  logger.With(zap.String("topic", topicFor(opts.UserID))),
		stopCh:  make(chan struct{}),
	}

	if err := s.join(opts.UserID, opts.AccessToken); err != nil {
		conn.Close()
		return nil, err
	}

	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = heartbeatInterval
	}

	s.wg.Add(2)
	go s.readPump()
	go s.heartbeat(interval)

	return s, nil
}

// join sends the channel join frame and waits for an ok reply.
func (s *realtimeSubscription) join(userID, accessToken string) error {
	payload, err := json.Marshal(joinPayload{
		Config: joinConfig{
			PostgresChanges: []changeFilter{{
				Event:  "*",
				Schema: "public",
				Table:  "notifications",
				Filter: "user_id=eq." + userID,
			}},
		},
		AccessToken: accessToken,
	})
	if err != nil {
		return fmt.Errorf("marshaling join payload: %w", err)
	}

	ref := s.nextRef()
	if err := s.send(frame{Topic: s.topic, Event: eventJoin, Payload: payload, Ref: ref}); err != nil {
		return fmt.Errorf("sending join: %w", err)
	}

	s.conn.SetReadDeadline(time.Now().Add(joinTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("waiting for join reply: %w", err)
		}
		if f.Event != eventReply || f.Ref != ref {
			continue
		}

		var reply replyPayload
		if err := json.Unmarshal(f.Payload, &reply); err != nil {
			return fmt.Errorf("decoding join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("join rejected: %s %s", reply.Status, string(reply.Response))
		}
		return nil
	}
}

// readPump decodes frames until the connection closes and dispatches change
// events to the handler in delivery order.
func (s *realtimeSubscription) readPump() {
	defer s.wg.Done()

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if s.closed.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("realtime connection lost", zap.Error(err))
			}
			s.lost(fmt.Errorf("realtime connection lost: %w", err))
			return
		}

		switch f.Event {
		case eventChanges:
			s.dispatch(f.Payload)
		case eventError, eventClose:
			if f.Topic == s.topic {
				s.logger.Warn("realtime channel closed by server", zap.String("event", f.Event))
				s.lost(fmt.Errorf("realtime channel closed by server: %s", f.Event))
				return
			}
		}
	}
}

// lost tears the connection down from the reader side and reports it to the
// handler, unless Unsubscribe got there first.
func (s *realtimeSubscription) lost(err error) {
	if !s.shutdown() {
		return
	}
	if s.handler.OnClose != nil {
		s.handler.OnClose(err)
	}
}

func (s *realtimeSubscription) dispatch(raw json.RawMessage) {
	if s.closed.Load() {
		return
	}

	var p changesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("skipping malformed change event", zap.Error(err))
		return
	}
	if p.Data.Record.ID == "" {
		s.logger.Warn("skipping change event without id", zap.String("type", p.Data.Type))
		return
	}

	n := p.Data.Record.toModel()
	switch p.Data.Type {
	case "INSERT":
		if s.handler.OnInsert != nil {
			s.handler.OnInsert(n)
		}
	case "UPDATE":
		if s.handler.OnUpdate != nil {
			s.handler.OnUpdate(n)
		}
	}
}

func (s *realtimeSubscription) heartbeat(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			err := s.send(frame{
				Topic:   "phoenix",
				Event:   eventHeartbeat,
				Payload: json.RawMessage(`{}`),
				Ref:     s.nextRef(),
			})
			if err != nil {
				s.logger.Debug("heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (s *realtimeSubscription) nextRef() string {
	return strconv.FormatInt(s.ref.Add(1), 10)
}

// send writes one frame. gorilla/websocket allows a single concurrent writer.
func (s *realtimeSubscription) send(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

// shutdown marks the subscription closed and closes the socket once. It
// reports whether this call did the closing.
func (s *realtimeSubscription) shutdown() bool {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.closed.Store(true)
		close(s.stopCh)

		_ = s.send(frame{Topic: s.topic, Event: eventLeave, Payload: json.RawMessage(`{}`), Ref: s.nextRef()})

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return first
}

// Unsubscribe leaves the channel and closes the connection. It is safe to
// call more than once and waits for the reader goroutine to exit.
func (s *realtimeSubscription) Unsubscribe() error {
	s.shutdown()
	s.wg.Wait()
	return nil
}
