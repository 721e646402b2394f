package notify_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/farmfresh-notify/internal/cache"
	"github.com/nhle/farmfresh-notify/internal/gateway"
	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/notify"
	"github.com/nhle/farmfresh-notify/tests/testutil"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type storeFixtures struct {
	store *notify.Store
	gw    *testutil.FakeGateway
	cache *cache.NotificationCache
}

func newStore(t *testing.T, opts ...notify.Option) storeFixtures {
	t.Helper()

	gw := testutil.NewFakeGateway()
	nc := testutil.NewTestNotificationCache(t)
	opts = append([]notify.Option{notify.WithClock(func() time.Time { return t0 })}, opts...)
	s := notify.New(gw, nc, zap.NewNop(), opts...)
	t.Cleanup(s.Close)

	return storeFixtures{store: s, gw: gw, cache: nc}
}

func countID(list []model.Notification, id string) int {
	n := 0
	for _, item := range list {
		if item.ID == id {
			n++
		}
	}
	return n
}

func countWelcome(list []model.Notification) int {
	n := 0
	for _, item := range list {
		if item.IsWelcome() {
			n++
		}
	}
	return n
}

func TestStore_GuestFirstRunShowsWelcome(t *testing.T) {
	fx := newStore(t)
	ctx := context.Background()

	fx.store.Initialize(ctx, "")

	list := fx.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, model.WelcomeID, list[0].ID)
	assert.Equal(t, model.WelcomeTitle, list[0].Title)
	assert.False(t, list[0].Read)
	assert.Equal(t, 1, fx.store.UnreadCount())
	assert.False(t, fx.store.HasCompletedWelcome())

	// Initializing again without dismissing keeps exactly one welcome.
	fx.store.Initialize(ctx, "")
	assert.Equal(t, 1, countID(fx.store.Notifications(), model.WelcomeID))
}

func TestStore_WelcomeDismissalIsPermanent(t *testing.T) {
	fx := newStore(t)
	ctx := context.Background()

	fx.store.Initialize(ctx, "")
	fx.store.MarkNotificationAsRead(model.WelcomeID)

	list := fx.store.Notifications()
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
	assert.True(t, fx.store.HasCompletedWelcome())
	assert.Equal(t, 0, fx.store.UnreadCount())

	// Next app load: a fresh store over the same cache.
	next := notify.New(fx.gw, fx.cache, zap.NewNop())
	defer next.Close()
	next.Initialize(ctx, "")
	assert.Zero(t, countWelcome(next.Notifications()))
	assert.True(t, next.HasCompletedWelcome())
}

func TestStore_WelcomeMatchedByTitle(t *testing.T) {
	fx := newStore(t)
	ctx := context.Background()

	key, err := fx.cache.GuestKey(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.cache.Save(ctx, key, []model.Notification{
		{ID: "1700000000000", Title: model.WelcomeTitle, Timestamp: t0},
	}))

	fx.store.Initialize(ctx, "")
	list := fx.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "1700000000000", list[0].ID)

	fx.store.MarkNotificationAsRead("1700000000000")
	assert.True(t, fx.store.HasCompletedWelcome())

	fx.store.Initialize(ctx, "")
	assert.Empty(t, fx.store.Notifications())
}

func TestStore_GuestAddPersistsWithTimestampID(t *testing.T) {
	fx := newStore(t)
	ctx := context.Background()
	fx.store.Initialize(ctx, "")

	a := fx.store.AddNotification(model.NotificationInput{Title: "Order placed", Type: model.NotificationTypeOrder})
	b := fx.store.AddNotification(model.NotificationInput{Title: "Order paid", Type: model.NotificationTypeOrder})

	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, model.WelcomeID, b.ID)
	assert.False(t, a.Read)
	assert.True(t, a.Timestamp.Equal(t0))

	list := fx.store.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, 3, fx.store.UnreadCount())

	fx.store.Wait()
	inserts, updates := fx.gw.Recorded()
	assert.Empty(t, inserts)
	assert.Empty(t, updates)

	next := notify.New(fx.gw, fx.cache, zap.NewNop())
	defer next.Close()
	next.Initialize(ctx, "")
	assert.Len(t, next.Notifications(), 3)
}

func TestStore_GuestIDSkipsWelcomeID(t *testing.T) {
	fx := newStore(t, notify.WithClock(func() time.Time { return time.UnixMilli(1) }))
	fx.store.Initialize(context.Background(), "")

	n := fx.store.AddNotification(model.NotificationInput{Title: "x"})
	assert.Equal(t, "2", n.ID)
	assert.Equal(t, 1, countID(fx.store.Notifications(), model.WelcomeID))
}

func TestStore_AuthenticatedInitialLoadAndSubscription(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{
		{ID: "b", Title: "Order shipped", Timestamp: t0},
		{ID: "a", Title: "New harvest", Read: true, Timestamp: t0.Add(-time.Hour)},
	}

	fx.store.Initialize(context.Background(), "u1")

	list := fx.store.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 1, fx.store.UnreadCount())
	assert.Zero(t, countWelcome(list))
	assert.True(t, fx.store.Live())
	assert.Equal(t, "u1", fx.store.UserID())

	sub := fx.gw.LastSubscription()
	require.NotNil(t, sub)
	assert.Equal(t, "u1", sub.UserID)
}

func TestStore_RemoteInsertPrependsAndDeduplicates(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()

	sub.EmitInsert(model.Notification{ID: "42", Title: "Harvest ready", Timestamp: t0.Add(time.Minute)})
	sub.EmitInsert(model.Notification{ID: "42", Title: "Harvest ready", Timestamp: t0.Add(time.Minute)})
	sub.EmitInsert(model.Notification{ID: "a", Title: "dup of initial"})

	list := fx.store.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "42", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, 2, fx.store.UnreadCount())
}

func TestStore_OptimisticAddThenEchoKeepsOneEntry(t *testing.T) {
	fx := newStore(t, notify.WithIDFunc(func() string { return "42" }))
	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()

	added := fx.store.AddNotification(model.NotificationInput{Title: "Order placed", Type: model.NotificationTypeOrder})
	assert.Equal(t, "42", added.ID)

	sub.EmitInsert(model.Notification{ID: "42", Title: "Order placed", Timestamp: t0})
	assert.Equal(t, 1, countID(fx.store.Notifications(), "42"))

	fx.store.Wait()
	inserts, _ := fx.gw.Recorded()
	require.Len(t, inserts, 1)
	assert.Equal(t, "u1", inserts[0].UserID)
	assert.Equal(t, "42", inserts[0].Notification.ID)
}

func TestStore_RemoteUpdateReplacesInPlace(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{
		{ID: "b", Title: "old", Timestamp: t0},
		{ID: "a", Title: "keep", Timestamp: t0.Add(-time.Hour)},
	}
	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()

	sub.EmitUpdate(model.Notification{ID: "b", Title: "new", Message: "m", Read: true, ActionURL: "/orders/1"})
	sub.EmitUpdate(model.Notification{ID: "zzz", Title: "unknown"})

	list := fx.store.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "new", list[0].Title)
	assert.Equal(t, "m", list[0].Message)
	assert.Equal(t, "/orders/1", list[0].ActionURL)
	assert.True(t, list[0].Read)
	assert.True(t, list[0].Timestamp.Equal(t0))
	assert.Equal(t, 1, fx.store.UnreadCount())
}

func TestStore_MarkReadEchoesRemotely(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}, {ID: "b", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")

	fx.store.MarkNotificationAsRead("a")
	assert.Equal(t, 1, fx.store.UnreadCount())

	fx.store.MarkAllNotificationsAsRead()
	assert.Equal(t, 0, fx.store.UnreadCount())
	for _, n := range fx.store.Notifications() {
		assert.True(t, n.Read)
	}

	fx.store.Wait()
	_, updates := fx.gw.Recorded()
	require.Len(t, updates, 2)
	assert.Equal(t, gateway.ByID("a"), updates[0].Target)
	assert.Equal(t, gateway.ByUser("u1"), updates[1].Target)
	assert.True(t, updates[0].Read)
}

func TestStore_MarkUnreadIsLocalOnly(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Read: true, Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")

	fx.store.MarkNotificationAsUnread("a")
	assert.Equal(t, 1, fx.store.UnreadCount())

	fx.store.Wait()
	_, updates := fx.gw.Recorded()
	assert.Empty(t, updates)
}

func TestStore_RemoteWritesKeepSubmissionOrder(t *testing.T) {
	fx := newStore(t, notify.WithIDFunc(func() string { return "n1" }))
	fx.store.Initialize(context.Background(), "u1")

	fx.gw.Block = make(chan struct{})
	fx.store.AddNotification(model.NotificationInput{Title: "Order placed"})
	fx.store.MarkNotificationAsRead("n1")
	fx.store.MarkAllNotificationsAsRead()

	// Local state is already final while every write is still blocked.
	assert.Equal(t, 0, fx.store.UnreadCount())

	close(fx.gw.Block)
	fx.store.Wait()

	inserts, updates := fx.gw.Recorded()
	require.Len(t, inserts, 1)
	require.Len(t, updates, 2)
	assert.Equal(t, gateway.ByID("n1"), updates[0].Target)
	assert.Equal(t, gateway.ByUser("u1"), updates[1].Target)
}

func TestStore_FailedWritesAreLoggedNotRolledBack(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()

	var mu sync.Mutex
	var failed []string
	gw := testutil.NewFakeGateway()
	gw.InsertErr = errors.New("insert refused")
	gw.UpdateErr = errors.New("update refused")

	s := notify.New(gw, testutil.NewTestNotificationCache(t), logger,
		notify.WithWriteErrorHandler(func(op, id string, err error) {
			mu.Lock()
			failed = append(failed, op)
			mu.Unlock()
		}),
	)
	defer s.Close()
	s.Initialize(context.Background(), "u1")

	n := s.AddNotification(model.NotificationInput{Title: "Order placed"})
	s.MarkNotificationAsRead(n.ID)
	s.Wait()

	list := s.Notifications()
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	mu.Lock()
	assert.Equal(t, []string{"insert", "mark_read"}, failed)
	mu.Unlock()

	entries := logs.FilterMessage("remote notification write failed; keeping local state").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "insert", entries[0].ContextMap()["op"])
}

func TestStore_RetryPolicy(t *testing.T) {
	fx := newStore(t,
		notify.WithWritePolicy(notify.WriteRetry),
		notify.WithRetryAttempts(2),
		notify.WithRetryInterval(time.Millisecond),
	)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")

	fx.gw.UpdateErr = errors.New("unavailable")
	fx.store.MarkNotificationAsRead("a")
	fx.store.Wait()

	_, updates := fx.gw.Recorded()
	assert.Len(t, updates, 3)
}

func TestStore_RetryPolicyStopsOnAuthError(t *testing.T) {
	fx := newStore(t,
		notify.WithWritePolicy(notify.WriteRetry),
		notify.WithRetryAttempts(5),
		notify.WithRetryInterval(time.Millisecond),
	)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")

	fx.gw.UpdateErr = fmt.Errorf("updating: %w", &gateway.AuthError{Message: "expired"})
	fx.store.MarkNotificationAsRead("a")
	fx.store.Wait()

	_, updates := fx.gw.Recorded()
	assert.Len(t, updates, 1)
}

func TestStore_FetchFailureStartsEmpty(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()
	gw := testutil.NewFakeGateway()
	gw.FetchErr = errors.New("network down")

	s := notify.New(gw, nil, logger)
	defer s.Close()
	s.Initialize(context.Background(), "u1")

	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 1, logs.FilterMessage("failed to fetch notifications; starting empty").Len())
}

func TestStore_SubscribeFailureDegradesToLoadOnce(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.gw.SubscribeErr = errors.New("socket refused")

	fx.store.Initialize(context.Background(), "u1")

	assert.Len(t, fx.store.Notifications(), 1)
	assert.False(t, fx.store.Live())

	fx.store.MarkNotificationAsRead("a")
	assert.Equal(t, 0, fx.store.UnreadCount())
}

func TestStore_IdentitySwitchTearsDownOldFeed(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "u1-a", Timestamp: t0}}
	fx.gw.Rows["u2"] = []model.Notification{{ID: "u2-a", Timestamp: t0}}

	fx.store.Initialize(context.Background(), "u1")
	first := fx.gw.LastSubscription()

	fx.store.Initialize(context.Background(), "u2")
	second := fx.gw.LastSubscription()

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, 1, first.UnsubscribeCalls())

	// A late frame from the old feed never reaches the new list.
	first.EmitOld(model.Notification{ID: "u1-late", Timestamp: t0})

	list := fx.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "u2-a", list[0].ID)
}

func TestStore_SignOutToGuest(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}

	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()

	fx.store.Initialize(context.Background(), "")

	assert.True(t, sub.Closed())
	assert.False(t, fx.store.Live())
	assert.Equal(t, "", fx.store.UserID())
	list := fx.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, model.WelcomeID, list[0].ID)
}

func TestStore_DisposeIsIdempotent(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()

	fx.store.Dispose()
	fx.store.Dispose()

	assert.Equal(t, 1, sub.UnsubscribeCalls())
	assert.False(t, fx.store.Live())

	sub.EmitOld(model.Notification{ID: "late", Timestamp: t0})
	assert.Len(t, fx.store.Notifications(), 1)
}

func TestStore_FeedLossDegradesToLoadOnce(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")
	sub := fx.gw.LastSubscription()
	require.True(t, fx.store.Live())

	var mu sync.Mutex
	var kinds []notify.ChangeKind
	cancel := fx.store.Subscribe(func(c notify.Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})
	defer cancel()

	sub.Drop(errors.New("connection reset"))

	assert.False(t, fx.store.Live())
	mu.Lock()
	assert.Equal(t, []notify.ChangeKind{notify.ChangeFeedLost}, kinds)
	mu.Unlock()

	// The list stays usable and local writes still reach the backend.
	fx.store.MarkNotificationAsRead("a")
	fx.store.Wait()
	_, updates := fx.gw.Recorded()
	require.Len(t, updates, 1)
	assert.Equal(t, gateway.ByID("a"), updates[0].Target)

	// Dispose after a lost feed has nothing left to tear down.
	fx.store.Dispose()
	assert.Equal(t, 0, sub.UnsubscribeCalls())
}

func TestStore_FeedLostDuringSubscribe(t *testing.T) {
	fx := newStore(t)
	fx.gw.DropOnSubscribe = errors.New("connection reset")
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0}}

	fx.store.Initialize(context.Background(), "u1")

	assert.False(t, fx.store.Live())
	assert.Len(t, fx.store.Notifications(), 1)

	// A new session starts with a fresh feed.
	fx.gw.DropOnSubscribe = nil
	fx.store.Initialize(context.Background(), "u1")
	assert.True(t, fx.store.Live())
}

func TestStore_StaleFeedLossIsIgnored(t *testing.T) {
	fx := newStore(t)
	fx.store.Initialize(context.Background(), "u1")
	first := fx.gw.LastSubscription()
	fx.store.Initialize(context.Background(), "u2")

	first.DropOld(errors.New("connection reset"))
	assert.True(t, fx.store.Live())
	assert.False(t, fx.gw.LastSubscription().Closed())
}

func TestStore_ConsumeLastClicked(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: "a", Timestamp: t0, ActionURL: "/orders/1"}}
	fx.store.Initialize(context.Background(), "u1")

	_, ok := fx.store.ConsumeLastClicked()
	assert.False(t, ok)

	fx.store.SetLastClickedNotificationID("a")
	assert.Equal(t, "a", fx.store.LastClickedNotificationID())
	assert.Equal(t, 1, fx.store.UnreadCount())

	id, ok := fx.store.ConsumeLastClicked()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, 0, fx.store.UnreadCount())
	assert.Empty(t, fx.store.LastClickedNotificationID())

	_, ok = fx.store.ConsumeLastClicked()
	assert.False(t, ok)

	fx.store.SetLastClickedNotificationID("a")
	fx.store.ClearLastClickedNotificationID()
	assert.Empty(t, fx.store.LastClickedNotificationID())
}

func TestStore_ChangeListeners(t *testing.T) {
	fx := newStore(t)

	var mu sync.Mutex
	var kinds []notify.ChangeKind
	cancel := fx.store.Subscribe(func(c notify.Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})

	fx.store.Initialize(context.Background(), "")
	fx.store.MarkNotificationAsRead(model.WelcomeID)
	cancel()
	cancel()
	fx.store.MarkNotificationAsUnread(model.WelcomeID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []notify.ChangeKind{notify.ChangeLoaded, notify.ChangeRead}, kinds)
}

func TestStore_MarkReadUnknownIDIsNoop(t *testing.T) {
	fx := newStore(t)
	fx.store.Initialize(context.Background(), "")

	fx.store.MarkNotificationAsRead("missing")
	assert.Equal(t, 1, fx.store.UnreadCount())
	assert.False(t, fx.store.HasCompletedWelcome())
}

func TestStore_AuthenticatedWelcomeFlagPersists(t *testing.T) {
	fx := newStore(t)
	fx.gw.Rows["u1"] = []model.Notification{{ID: model.WelcomeID, Title: model.WelcomeTitle, Timestamp: t0}}
	fx.store.Initialize(context.Background(), "u1")

	fx.store.MarkAllNotificationsAsRead()
	assert.True(t, fx.store.HasCompletedWelcome())
	assert.True(t, fx.cache.WelcomeCompleted(context.Background(), "u1"))
}
