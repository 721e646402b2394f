// Package notify holds the in-memory notification store of a session: it
// merges the initial load, the live change feed and local optimistic
// mutations into one newest-first list.
package notify

import (
	"context"
	"strconv"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/farmfresh-notify/internal/cache"
	"github.com/nhle/farmfresh-notify/internal/gateway"
	"github.com/nhle/farmfresh-notify/internal/model"
)

// ChangeKind identifies what caused a store change.
type ChangeKind int

const (
	ChangeLoaded ChangeKind = iota
	ChangeAdded
	ChangeRemoteInsert
	ChangeRemoteUpdate
	ChangeRead
	ChangeAllRead
	ChangeUnread
	ChangeDisposed
	ChangeFeedLost
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeAdded:
		return "added"
	case ChangeRemoteInsert:
		return "remote_insert"
	case ChangeRemoteUpdate:
		return "remote_update"
	case ChangeRead:
		return "read"
	case ChangeAllRead:
		return "all_read"
	case ChangeUnread:
		return "unread"
	case ChangeDisposed:
		return "disposed"
	case ChangeFeedLost:
		return "feed_lost"
	default:
		return "unknown"
	}
}

// Change describes a single mutation of the store. ID is empty for
// list-wide changes.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Option configures a Store.
type Option func(*Store)

// WithWritePolicy selects how remote writes are attempted.
func WithWritePolicy(p WritePolicy) Option {
	return func(s *Store) { s.writer.policy = p }
}

// WithRetryAttempts bounds the retries made under WriteRetry.
func WithRetryAttempts(n uint64) Option {
	return func(s *Store) { s.writer.maxRetries = n }
}

// WithRetryInterval sets the first backoff delay under WriteRetry.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Store) { s.writer.initialInterval = d }
}

// WithWriteErrorHandler registers a callback for remote writes that failed
// for good, e.g. to surface a warning in the UI.
func WithWriteErrorHandler(fn WriteErrorHandler) Option {
	return func(s *Store) { s.writer.onError = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation for notifications added by an
// authenticated user.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Store is the authoritative in-memory view of the active identity's
// notifications. It is safe for concurrent use: change-feed callbacks arrive
// on the subscription goroutine while UI actions arrive on the caller's.
// Mutations are applied under one lock in arrival order.
type Store struct {
	gateway gateway.Gateway
	cache   *cache.NotificationCache
	logger  *zap.Logger
	writer  *remoteWriter
	now     func() time.Time
	newID   func() string

	mu                  gosync.Mutex
	userID              string
	identity            string
	notifications       []model.Notification
	hasCompletedWelcome bool
	lastClickedID       string
	sub                 gateway.Subscription
	generation          uint64

	// feedLost is set when the feed of the current generation ended on its
	// own, possibly before Subscribe returned.
	feedLost bool

	listenerMu   gosync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

// New creates a store. gw may be nil when only guest sessions are used;
// nc may be nil to disable local persistence.
func New(gw gateway.Gateway, nc *cache.NotificationCache, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("notify")

	s := &Store{
		gateway:   gw,
		cache:     nc,
		logger:    logger,
		writer:    newRemoteWriter(WriteBestEffort, 3, logger),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		listeners: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the notifications of userID ("" for a guest) and, for an
// authenticated user, opens the live change feed. Any previous subscription
// is torn down first so events of the old identity can never reach the new
// list. Failures are logged and degrade to an empty list or to load-once
// behavior; Initialize never fails.
func (s *Store) Initialize(ctx context.Context, userID string) {
	s.mu.Lock()
	old := s.sub
	s.sub = nil
	s.generation++
	gen := s.generation
	s.feedLost = false
	s.userID = userID
	s.identity = userID
	s.notifications = nil
	s.hasCompletedWelcome = false
	s.lastClickedID = ""
	s.mu.Unlock()

	s.unsubscribe(old)

	if userID == "" {
		s.initializeGuest(ctx, gen)
		return
	}
	s.initializeUser(ctx, gen, userID)
}

func (s *Store) initializeGuest(ctx context.Context, gen uint64) {
	identity := "guest"
	var list []model.Notification
	completed := false

	if s.cache != nil {
		key, err := s.cache.GuestKey(ctx)
		if err != nil {
			s.logger.Error("failed to resolve guest key; using shared guest slot", zap.Error(err))
		} else {
			identity = key
		}

		list, err = s.cache.Load(ctx, identity)
		if err != nil {
			s.logger.Error("failed to load cached notifications", zap.String("identity", identity), zap.Error(err))
			list = nil
		}
		completed = s.cache.WelcomeCompleted(ctx, identity)
	}

	list = ApplyWelcomePolicy(dedupe(list), completed, s.now())

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.identity = identity
	s.notifications = list
	s.hasCompletedWelcome = completed
	s.mu.Unlock()

	s.logger.Debug("guest notifications loaded", zap.Int("count", len(list)), zap.Bool("welcome_completed", completed))
	s.emit(Change{Kind: ChangeLoaded})
}

func (s *Store) initializeUser(ctx context.Context, gen uint64, userID string) {
	var list []model.Notification
	if s.gateway != nil {
		fetched, err := s.gateway.FetchNotifications(ctx, userID)
		if err != nil {
			s.logger.Error("failed to fetch notifications; starting empty",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else {
			list = fetched
		}
	}

	completed := false
	if s.cache != nil {
		completed = s.cache.WelcomeCompleted(ctx, userID)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.notifications = dedupe(list)
	s.hasCompletedWelcome = completed
	s.mu.Unlock()

	s.logger.Debug("notifications loaded", zap.String("user_id", userID), zap.Int("count", len(list)))
	s.emit(Change{Kind: ChangeLoaded})

	if s.gateway == nil {
		return
	}

	sub, err := s.gateway.Subscribe(ctx, userID, gateway.EventHandler{
		OnInsert: func(n model.Notification) { s.applyRemoteInsert(gen, n) },
		OnUpdate: func(n model.Notification) { s.applyRemoteUpdate(gen, n) },
		OnClose:  func(err error) { s.handleFeedLost(gen, err) },
	})
	if err != nil {
		s.logger.Warn("live notification updates unavailable; continuing without them",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		// Identity changed while subscribing.
		s.mu.Unlock()
		s.unsubscribe(sub)
		return
	}
	if s.feedLost {
		// The feed died before it was handed over.
		s.mu.Unlock()
		s.unsubscribe(sub)
		return
	}
	s.sub = sub
	s.mu.Unlock()
}

// handleFeedLost drops a subscription that ended without Unsubscribe and
// leaves the session in load-once mode. It runs on the subscription's reader
// goroutine, so it must not call Unsubscribe on it.
func (s *Store) handleFeedLost(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.feedLost = true
	s.sub = nil
	userID := s.userID
	s.mu.Unlock()

	s.logger.Warn("live notification updates lost; continuing without them",
		zap.String("user_id", userID),
		zap.Error(err),
	)
	s.emit(Change{Kind: ChangeFeedLost})
}

// applyRemoteInsert prepends n unless its id is already present.
func (s *Store) applyRemoteInsert(gen uint64, n model.Notification) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if indexOf(s.notifications, n.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Debug("skipping duplicate insert event", zap.String("id", n.ID))
		return
	}
	s.notifications = prepend(s.notifications, n)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoteInsert, ID: n.ID})
}

// applyRemoteUpdate overwrites the mutable fields of the matching entry in
// place. Updates for unknown ids are ignored.
func (s *Store) applyRemoteUpdate(gen uint64, n model.Notification) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	i := indexOf(s.notifications, n.ID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("ignoring update for unknown notification", zap.String("id", n.ID))
		return
	}
	cur := &s.notifications[i]
	cur.Read = n.Read
	cur.Title = n.Title
	cur.Message = n.Message
	cur.ActionURL = n.ActionURL
	if !n.Timestamp.IsZero() {
		cur.Timestamp = n.Timestamp
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoteUpdate, ID: n.ID})
}

// AddNotification assigns an id and timestamp, prepends the notification
// immediately and, for an authenticated user, queues the remote insert.
// A failed insert is logged; the local entry stays.
func (s *Store) AddNotification(in model.NotificationInput) model.Notification {
	s.mu.Lock()
	n := model.Notification{
		Title:       in.Title,
		Message:     in.Message,
		Type:        in.Type,
		Read:        false,
		Timestamp:   s.now(),
		ActionURL:   in.ActionURL,
		ActionLabel: in.ActionLabel,
	}
	if s.userID != "" {
		n.ID = s.newID()
	} else {
		n.ID = s.guestID(n.Timestamp)
	}
	if indexOf(s.notifications, n.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Warn("generated notification id already present; skipping add", zap.String("id", n.ID))
		return n
	}
	s.notifications = prepend(s.notifications, n)
	userID := s.userID
	if userID == "" {
		s.persistLocked()
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeAdded, ID: n.ID})

	if userID != "" && s.gateway != nil {
		gw := s.gateway
		s.writer.Submit("insert", n.ID, func(ctx context.Context) error {
			return gw.InsertNotification(ctx, userID, n)
		})
	}
	return n
}

// guestID derives an id from the creation time, bumped until unique.
// Callers must hold s.mu.
func (s *Store) guestID(ts time.Time) string {
	ms := ts.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if id != model.WelcomeID && indexOf(s.notifications, id) < 0 {
			return id
		}
		ms++
	}
}

// MarkNotificationAsRead marks one notification read immediately. For an
// authenticated user the remote row is updated in the background; for a
// guest the list is persisted locally. Reading the welcome notification
// completes the welcome.
func (s *Store) MarkNotificationAsRead(id string) {
	s.mu.Lock()
	i := indexOf(s.notifications, id)
	welcome := id == model.WelcomeID || (i >= 0 && s.notifications[i].IsWelcome())
	if welcome {
		s.completeWelcomeLocked()
	}
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("mark read for unknown notification", zap.String("id", id))
		return
	}
	s.notifications[i].Read = true
	userID := s.userID
	if userID == "" {
		s.persistLocked()
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRead, ID: id})

	if userID != "" && s.gateway != nil {
		gw := s.gateway
		s.writer.Submit("mark_read", id, func(ctx context.Context) error {
			return gw.UpdateReadState(ctx, gateway.ByID(id), true)
		})
	}
}

// MarkAllNotificationsAsRead marks every notification read immediately and
// mirrors the change remotely (one bulk update) or locally.
func (s *Store) MarkAllNotificationsAsRead() {
	s.mu.Lock()
	hadWelcome := false
	for i := range s.notifications {
		s.notifications[i].Read = true
		if s.notifications[i].IsWelcome() {
			hadWelcome = true
		}
	}
	if hadWelcome {
		s.completeWelcomeLocked()
	}
	userID := s.userID
	if userID == "" {
		s.persistLocked()
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeAllRead})

	if userID != "" && s.gateway != nil {
		gw := s.gateway
		s.writer.Submit("mark_all_read", userID, func(ctx context.Context) error {
			return gw.UpdateReadState(ctx, gateway.ByUser(userID), true)
		})
	}
}

// MarkNotificationAsUnread flips one notification back to unread. It is a
// local action: guests persist it, authenticated users do not send it to the
// backend.
func (s *Store) MarkNotificationAsUnread(id string) {
	s.mu.Lock()
	i := indexOf(s.notifications, id)
	if i < 0 || !s.notifications[i].Read {
		s.mu.Unlock()
		return
	}
	s.notifications[i].Read = false
	if s.userID == "" {
		s.persistLocked()
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeUnread, ID: id})
}

// completeWelcomeLocked flips and persists the welcome flag. Callers must
// hold s.mu.
func (s *Store) completeWelcomeLocked() {
	if s.hasCompletedWelcome {
		return
	}
	s.hasCompletedWelcome = true
	if s.cache == nil || s.identity == "" {
		return
	}
	if err := s.cache.SetWelcomeCompleted(context.Background(), s.identity, true); err != nil {
		s.logger.Error("failed to persist welcome flag", zap.String("identity", s.identity), zap.Error(err))
	}
}

// persistLocked saves the guest list. Callers must hold s.mu.
func (s *Store) persistLocked() {
	if s.cache == nil || s.identity == "" {
		return
	}
	if err := s.cache.Save(context.Background(), s.identity, s.notifications); err != nil {
		s.logger.Error("failed to persist guest notifications", zap.String("identity", s.identity), zap.Error(err))
	}
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countUnread(s.notifications)
}

// Notifications returns a copy of the list, newest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notifications...)
}

// HasCompletedWelcome reports whether the active identity dismissed the
// welcome notification.
func (s *Store) HasCompletedWelcome() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCompletedWelcome
}

// UserID returns the authenticated user of the session, or "" for a guest.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Live reports whether a change-feed subscription is currently open.
func (s *Store) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// SetLastClickedNotificationID records the notification whose navigation
// target was just opened.
func (s *Store) SetLastClickedNotificationID(id string) {
	s.mu.Lock()
	s.lastClickedID = id
	s.mu.Unlock()
}

// LastClickedNotificationID returns the recorded click, or "".
func (s *Store) LastClickedNotificationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClickedID
}

// ClearLastClickedNotificationID forgets the recorded click.
func (s *Store) ClearLastClickedNotificationID() {
	s.SetLastClickedNotificationID("")
}

// ConsumeLastClicked marks the recorded click as read and clears it. It is
// called once the navigation it triggered has completed.
func (s *Store) ConsumeLastClicked() (string, bool) {
	s.mu.Lock()
	id := s.lastClickedID
	s.lastClickedID = ""
	s.mu.Unlock()

	if id == "" {
		return "", false
	}
	s.MarkNotificationAsRead(id)
	return id, true
}

// Subscribe registers fn to be called after every change. Callbacks run on
// the goroutine that caused the change, outside the store lock. The returned
// function removes the listener.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.listenerMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) emit(c Change) {
	s.listenerMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Dispose closes the live subscription of the current identity. It is safe
// to call any number of times; after it returns no event of the disposed
// subscription reaches the list.
func (s *Store) Dispose() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.generation++
	s.mu.Unlock()

	if sub == nil {
		return
	}
	s.unsubscribe(sub)
	s.emit(Change{Kind: ChangeDisposed})
}

// Wait blocks until all queued remote writes have completed.
func (s *Store) Wait() {
	s.writer.Wait()
}

// Close disposes the session and drains pending remote writes.
func (s *Store) Close() {
	s.Dispose()
	s.writer.Close()
}

func (s *Store) unsubscribe(sub gateway.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Warn("failed to unsubscribe from notification feed", zap.Error(err))
	}
}

func indexOf(list []model.Notification, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func prepend(list []model.Notification, n model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(list)+1)
	out = append(out, n)
	return append(out, list...)
}

// dedupe keeps the first occurrence of every id.
func dedupe(list []model.Notification) []model.Notification {
	seen := make(map[string]bool, len(list))
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

func countUnread(list []model.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}
