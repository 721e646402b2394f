package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/farmfresh-notify/internal/model"
)

// fakeRealtime is a minimal realtime server: it answers the join and then
// runs script. Every frame the client sends afterwards is forwarded on
// received.
type fakeRealtime struct {
	srv      *httptest.Server
	query    chan string
	joins    chan joinPayload
	received chan frame
}

func newFakeRealtime(t *testing.T, status string, script func(conn *websocket.Conn, topic string)) *fakeRealtime {
	t.Helper()

	f := &fakeRealtime{
		query:    make(chan string, 1),
		joins:    make(chan joinPayload, 1),
		received: make(chan frame, 32),
	}
	upgrader := websocket.Upgrader{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.query <- r.URL.RawQuery

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var join frame
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		var jp joinPayload
		_ = json.Unmarshal(join.Payload, &jp)
		f.joins <- jp

		reply, _ := json.Marshal(replyPayload{Status: status, Response: json.RawMessage(`{}`)})
		if err := conn.WriteJSON(frame{Topic: join.Topic, Event: eventReply, Payload: reply, Ref: join.Ref}); err != nil {
			return
		}
		if status != "ok" {
			return
		}

		if script != nil {
			script(conn, join.Topic)
		}

		for {
			var in frame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			select {
			case f.received <- in:
			default:
			}
		}
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeRealtime) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func changeFrame(t *testing.T, topic, kind string, row notificationRow) frame {
	t.Helper()

	payload, err := json.Marshal(changesPayload{Data: changeData{Type: kind, Table: "notifications", Record: row}})
	require.NoError(t, err)
	return frame{Topic: topic, Event: eventChanges, Payload: payload}
}

func TestRealtime_DeliversInsertsAndUpdatesInOrder(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	srv := newFakeRealtime(t, "ok", func(conn *websocket.Conn, topic string) {
		_ = conn.WriteJSON(changeFrame(t, topic, "INSERT", notificationRow{ID: "n1", Title: "Order placed", Type: "order", CreatedAt: created}))
		_ = conn.WriteJSON(frame{Topic: topic, Event: eventChanges, Payload: json.RawMessage(`{"data":{"type":"INSERT","record":{}}}`)})
		_ = conn.WriteJSON(changeFrame(t, topic, "UPDATE", notificationRow{ID: "n1", Title: "Order placed", Read: true, CreatedAt: created}))
	})

	events := make(chan string, 4)
	g := NewRESTGateway(Options{RealtimeURL: srv.url(), APIKey: "anon", Token: func() string { return "tok" }})
	sub, err := g.Subscribe(context.Background(), "u1", EventHandler{
		OnInsert: func(n model.Notification) { events <- "insert:" + n.ID },
		OnUpdate: func(n model.Notification) {
			if n.Read {
				events <- "update:" + n.ID + ":read"
			}
		},
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Contains(t, <-srv.query, "apikey=anon")
	jp := <-srv.joins
	assert.Equal(t, "tok", jp.AccessToken)
	require.Len(t, jp.Config.PostgresChanges, 1)
	assert.Equal(t, "user_id=eq.u1", jp.Config.PostgresChanges[0].Filter)

	for _, want := range []string{"insert:n1", "update:n1:read"} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestRealtime_JoinRejected(t *testing.T) {
	srv := newFakeRealtime(t, "error", nil)

	_, err := dialRealtime(context.Background(), realtimeOptions{URL: srv.url(), UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join rejected")
}

func TestRealtime_MissingURL(t *testing.T) {
	_, err := dialRealtime(context.Background(), realtimeOptions{UserID: "u1"})
	assert.Error(t, err)
}

func TestRealtime_UnsubscribeIsIdempotent(t *testing.T) {
	srv := newFakeRealtime(t, "ok", nil)

	sub, err := dialRealtime(context.Background(), realtimeOptions{URL: srv.url(), UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.True(t, sub.closed.Load())

	select {
	case f := <-srv.received:
		assert.Equal(t, eventLeave, f.Event)
		assert.Equal(t, topicFor("u1"), f.Topic)
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the leave frame")
	}
}

func TestRealtime_Heartbeat(t *testing.T) {
	srv := newFakeRealtime(t, "ok", nil)

	sub, err := dialRealtime(context.Background(), realtimeOptions{
		URL:               srv.url(),
		UserID:            "u1",
		HeartbeatInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case f := <-srv.received:
		assert.Equal(t, eventHeartbeat, f.Event)
		assert.Equal(t, "phoenix", f.Topic)
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestRealtime_NoCallbacksAfterUnsubscribe(t *testing.T) {
	sub := &realtimeSubscription{
		handler: EventHandler{OnInsert: func(model.Notification) { t.Error("callback after unsubscribe") }},
	}
	sub.closed.Store(true)

	raw, err := json.Marshal(changesPayload{Data: changeData{Type: "INSERT", Record: notificationRow{ID: "late"}}})
	require.NoError(t, err)
	sub.dispatch(raw)
}

func TestRealtime_ServerDropReportsClose(t *testing.T) {
	tests := []struct {
		name   string
		script func(conn *websocket.Conn, topic string)
	}{
		{
			name:   "connection closed",
			script: func(conn *websocket.Conn, _ string) { conn.Close() },
		},
		{
			name: "channel closed",
			script: func(conn *websocket.Conn, topic string) {
				_ = conn.WriteJSON(frame{Topic: topic, Event: eventClose, Payload: json.RawMessage(`{}`)})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeRealtime(t, "ok", tt.script)

			closes := make(chan error, 2)
			sub, err := dialRealtime(context.Background(), realtimeOptions{
				URL:     srv.url(),
				UserID:  "u1",
				Handler: EventHandler{OnClose: func(err error) { closes <- err }},
			})
			require.NoError(t, err)

			select {
			case err := <-closes:
				assert.Error(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("feed loss was never reported")
			}

			require.NoError(t, sub.Unsubscribe())
			assert.True(t, sub.closed.Load())
			assert.Empty(t, closes, "close reported more than once")
		})
	}
}

func TestRealtime_UnsubscribeDoesNotReportClose(t *testing.T) {
	srv := newFakeRealtime(t, "ok", nil)

	closes := make(chan error, 1)
	sub, err := dialRealtime(context.Background(), realtimeOptions{
		URL:     srv.url(),
		UserID:  "u1",
		Handler: EventHandler{OnClose: func(err error) { closes <- err }},
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	assert.Empty(t, closes)
}
