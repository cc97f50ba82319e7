package supastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRealtime accepts joins, answers them and forwards every frame it
// receives to frames.
func fakeRealtime(t *testing.T, frames chan<- message, push <-chan message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		write := func(m message) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return conn.WriteJSON(m)
		}
		go func() {
			for m := range push {
				if write(m) != nil {
					return
				}
			}
		}()

		for {
			var m message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			frames <- m
			if m.Event == "phx_join" {
				reply, _ := json.Marshal(replyPayload{Status: "ok", Response: json.RawMessage(`{}`)})
				if write(message{Topic: m.Topic, Event: "phx_reply", Payload: reply, Ref: m.Ref}) != nil {
					return
				}
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRealtimeURL(t *testing.T) {
	assert.Equal(t,
		"wss://abc.supabase.co/realtime/v1/websocket?apikey=key&vsn=1.0.0",
		RealtimeURL("https://abc.supabase.co/", "key"))
}

func TestRealtimeJoinDeliverLeave(t *testing.T) {
	frames := make(chan message, 16)
	push := make(chan message, 16)
	server := fakeRealtime(t, frames, push)
	defer server.Close()
	defer close(push)

	rt, err := NewRealtime(wsURL(server), "user-token", nil)
	require.NoError(t, err)
	defer rt.Close()

	events := make(chan rowstore.Event, 4)
	unsub, err := rt.Subscribe(context.Background(), "notifications", rowstore.Eq("user_id", "u1"), func(ev rowstore.Event) {
		events <- ev
	})
	require.NoError(t, err)

	join := <-frames
	assert.Equal(t, "phx_join", join.Event)
	var jp joinPayload
	require.NoError(t, json.Unmarshal(join.Payload, &jp))
	require.Len(t, jp.Config.PostgresChanges, 1)
	assert.Equal(t, "notifications", jp.Config.PostgresChanges[0].Table)
	assert.Equal(t, "user_id=eq.u1", jp.Config.PostgresChanges[0].Filter)
	assert.Equal(t, "user-token", jp.AccessToken)

	push <- message{
		Topic: join.Topic,
		Event: "postgres_changes",
		Payload: json.RawMessage(`{"ids":[1],"data":{"type":"INSERT","table":"notifications","schema":"public",
			"record":{"id":"n1","user_id":"u1","type":"like","is_read":false},
			"old_record":null,"commit_timestamp":"2024-05-01T12:00:00.123Z"}}`),
	}

	select {
	case ev := <-events:
		assert.Equal(t, rowstore.EventInsert, ev.Kind)
		assert.Equal(t, "notifications", ev.Table)
		assert.Equal(t, "n1", ev.Record.ID())
		assert.False(t, ev.CommitTime.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}

	unsub()
	unsub()
	select {
	case leave := <-frames:
		assert.Equal(t, "phx_leave", leave.Event)
		assert.Equal(t, join.Topic, leave.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("no leave sent")
	}
}

func TestRealtimeAppliesExtraColumnsLocally(t *testing.T) {
	frames := make(chan message, 16)
	push := make(chan message, 16)
	server := fakeRealtime(t, frames, push)
	defer server.Close()
	defer close(push)

	rt, err := NewRealtime(wsURL(server), "tok", nil)
	require.NoError(t, err)
	defer rt.Close()

	events := make(chan rowstore.Event, 4)
	_, err = rt.Subscribe(context.Background(), "notifications",
		rowstore.Eq("user_id", "u1").And("is_read", false),
		func(ev rowstore.Event) { events <- ev })
	require.NoError(t, err)
	join := <-frames

	for _, read := range []string{"true", "false"} {
		push <- message{
			Topic:   join.Topic,
			Event:   "postgres_changes",
			Payload: json.RawMessage(`{"data":{"type":"UPDATE","table":"notifications","record":{"id":"n1","user_id":"u1","is_read":` + read + `}}}`),
		}
	}

	select {
	case ev := <-events:
		assert.Equal(t, false, ev.Record["is_read"])
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}
	assert.Empty(t, events)
}
