package testutil

import (
	"context"
	"sync"

	"github.com/nhle/farmfresh-notify/internal/gateway"
	"github.com/nhle/farmfresh-notify/internal/model"
)

// ReadUpdate records one UpdateReadState call.
type ReadUpdate struct {
	Target gateway.ReadTarget
	Read   bool
}

// Insert records one InsertNotification call.
type Insert struct {
	UserID       string
	Notification model.Notification
}

// FakeGateway is an in-memory gateway.Gateway. Rows are keyed by user; every
// write is recorded. Errors can be injected per operation.
type FakeGateway struct {
	mu sync.Mutex

	Rows map[string][]model.Notification

	FetchErr     error
	InsertErr    error
	UpdateErr    error
	SubscribeErr error

	// DropOnSubscribe, when set, ends each new feed with this error before
	// Subscribe returns.
	DropOnSubscribe error

	Inserts []Insert
	Updates []ReadUpdate

	// Block, when set, is received from before each write returns.
	Block chan struct{}

	subs []*FakeSubscription
}

// NewFakeGateway returns an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{Rows: make(map[string][]model.Notification)}
}

// FetchNotifications implements gateway.Gateway.
func (g *FakeGateway) FetchNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	return append([]model.Notification(nil), g.Rows[userID]...), nil
}

// InsertNotification implements gateway.Gateway.
func (g *FakeGateway) InsertNotification(_ context.Context, userID string, n model.Notification) error {
	g.wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.Inserts = append(g.Inserts, Insert{UserID: userID, Notification: n})
	if g.InsertErr != nil {
		return g.InsertErr
	}
	g.Rows[userID] = append([]model.Notification{n}, g.Rows[userID]...)
	return nil
}

// UpdateReadState implements gateway.Gateway.
func (g *FakeGateway) UpdateReadState(_ context.Context, target gateway.ReadTarget, read bool) error {
	g.wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.Updates = append(g.Updates, ReadUpdate{Target: target, Read: read})
	if g.UpdateErr != nil {
		return g.UpdateErr
	}
	for user, rows := range g.Rows {
		for i := range rows {
			if target.UserID == user || rows[i].ID == target.ID {
				rows[i].Read = read
			}
		}
	}
	return nil
}

// Subscribe implements gateway.Gateway.
func (g *FakeGateway) Subscribe(_ context.Context, userID string, handler gateway.EventHandler) (gateway.Subscription, error) {
	g.mu.Lock()
	if g.SubscribeErr != nil {
		g.mu.Unlock()
		return nil, g.SubscribeErr
	}
	sub := &FakeSubscription{UserID: userID, handler: handler}
	g.subs = append(g.subs, sub)
	drop := g.DropOnSubscribe
	g.mu.Unlock()

	if drop != nil {
		sub.Drop(drop)
	}
	return sub, nil
}

// Subscriptions returns every subscription opened so far.
func (g *FakeGateway) Subscriptions() []*FakeSubscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*FakeSubscription(nil), g.subs...)
}

// LastSubscription returns the most recent subscription, or nil.
func (g *FakeGateway) LastSubscription() *FakeSubscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.subs) == 0 {
		return nil
	}
	return g.subs[len(g.subs)-1]
}

// Recorded returns copies of the recorded writes.
func (g *FakeGateway) Recorded() ([]Insert, []ReadUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Insert(nil), g.Inserts...), append([]ReadUpdate(nil), g.Updates...)
}

func (g *FakeGateway) wait() {
	g.mu.Lock()
	block := g.Block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
}

// FakeSubscription delivers events synchronously until unsubscribed.
type FakeSubscription struct {
	UserID string

	mu           sync.Mutex
	handler      gateway.EventHandler
	closed       bool
	unsubscribed int
}

// EmitInsert delivers an insert event. It is a no-op after Unsubscribe.
func (s *FakeSubscription) EmitInsert(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handler.OnInsert == nil {
		return
	}
	s.handler.OnInsert(n)
}

// EmitUpdate delivers an update event. It is a no-op after Unsubscribe.
func (s *FakeSubscription) EmitUpdate(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handler.OnUpdate == nil {
		return
	}
	s.handler.OnUpdate(n)
}

// Drop ends the feed as if the server went away: the handler's OnClose runs
// once and later events are discarded.
func (s *FakeSubscription) Drop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.handler.OnClose != nil {
		s.handler.OnClose(err)
	}
}

// Unsubscribe implements gateway.Subscription.
func (s *FakeSubscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed++
	s.closed = true
	return nil
}

// Closed reports whether Unsubscribe has been called.
func (s *FakeSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// UnsubscribeCalls returns how many times Unsubscribe ran.
func (s *FakeSubscription) UnsubscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// EmitOld delivers an insert even after Unsubscribe, simulating a late frame
// from a feed that was already torn down.
func (s *FakeSubscription) EmitOld(n model.Notification) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h.OnInsert != nil {
		h.OnInsert(n)
	}
}

// DropOld reports feed loss even after Unsubscribe, simulating a close that
// raced an identity switch.
func (s *FakeSubscription) DropOld(err error) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h.OnClose != nil {
		h.OnClose(err)
	}
}
