package supastore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresProject(t *testing.T) {
	_, err := New(Config{URL: "https://abc.supabase.co"}, nil)
	assert.Error(t, err)
}

func TestSetAccessTokenSwitchesJoinToken(t *testing.T) {
	frames := make(chan message, 16)
	push := make(chan message, 16)
	server := fakeRealtime(t, frames, push)
	defer server.Close()
	defer close(push)

	cfg := Config{URL: "http://127.0.0.1:54321", AnonKey: "anon"}
	rt, err := NewRealtime(wsURL(server), realtimeToken(cfg), nil)
	require.NoError(t, err)
	defer rt.Close()
	client, err := newClient(cfg)
	require.NoError(t, err)
	s := &Store{cfg: cfg, client: client, realtime: rt}

	joinToken := func() string {
		t.Helper()
		unsub, err := s.Subscribe(context.Background(), "notifications", rowstore.Eq("user_id", "u1"), func(rowstore.Event) {})
		require.NoError(t, err)
		join := <-frames
		require.Equal(t, "phx_join", join.Event)
		var jp joinPayload
		require.NoError(t, json.Unmarshal(join.Payload, &jp))
		unsub()
		require.Equal(t, "phx_leave", (<-frames).Event)
		return jp.AccessToken
	}

	assert.Equal(t, "anon", joinToken())

	require.NoError(t, s.SetAccessToken("user-token"))
	assert.Equal(t, "user-token", joinToken())
	assert.NotSame(t, client, s.Client())

	require.NoError(t, s.SetAccessToken(""))
	assert.Equal(t, "anon", joinToken())
}
