package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	s := New()
	row, err := s.Insert(context.Background(), "posts", rowstore.Row{"content": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID())
	assert.NotEmpty(t, row["created_at"])
}

func TestUniquePairs(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Insert(ctx, "post_likes", rowstore.Row{"post_id": "p1", "user_id": "u1"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "post_likes", rowstore.Row{"post_id": "p1", "user_id": "u1"})
	assert.True(t, errors.Is(err, rowstore.ErrDuplicate))

	_, err = s.Insert(ctx, "post_likes", rowstore.Row{"post_id": "p1", "user_id": "u2"})
	assert.NoError(t, err)
}

func TestSelfFollowRejected(t *testing.T) {
	s := New()
	_, err := s.Insert(context.Background(), "connections", rowstore.Row{"follower_id": "u1", "following_id": "u1"})
	assert.Error(t, err)
}

func TestSelectUpdateDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed("notifications",
		rowstore.Row{"id": "n1", "user_id": "u1", "is_read": false},
		rowstore.Row{"id": "n2", "user_id": "u2", "is_read": false},
	)

	rows, err := s.Select(ctx, "notifications", rowstore.Eq("user_id", "u1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	updated, err := s.Update(ctx, "notifications", rowstore.Eq("id", "n1"), rowstore.Row{"is_read": true})
	require.NoError(t, err)
	assert.Equal(t, true, updated["is_read"])

	_, err = s.Update(ctx, "notifications", rowstore.Eq("id", "missing"), rowstore.Row{"is_read": true})
	assert.True(t, errors.Is(err, rowstore.ErrNotFound))

	require.NoError(t, s.Delete(ctx, "notifications", rowstore.Eq("id", "n1")))
	rows, _ = s.Select(ctx, "notifications", nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "n2", rows[0].ID())
}

func TestSubscribeFiltersAndUnsubscribes(t *testing.T) {
	s := New()
	ctx := context.Background()
	var got []rowstore.Event
	unsub, err := s.Subscribe(ctx, "notifications", rowstore.Eq("user_id", "u1"), func(ev rowstore.Event) {
		got = append(got, ev)
	})
	require.NoError(t, err)

	_, _ = s.Insert(ctx, "notifications", rowstore.Row{"id": "n1", "user_id": "u1"})
	_, _ = s.Insert(ctx, "notifications", rowstore.Row{"id": "n2", "user_id": "u2"})
	require.NoError(t, s.Delete(ctx, "notifications", rowstore.Eq("id", "n1")))

	require.Len(t, got, 2)
	assert.Equal(t, rowstore.EventInsert, got[0].Kind)
	assert.Equal(t, rowstore.EventDelete, got[1].Kind)
	assert.Equal(t, "n1", got[1].Payload().ID())

	unsub()
	unsub()
	assert.Equal(t, 0, s.Subscribers())
	_, _ = s.Insert(ctx, "notifications", rowstore.Row{"id": "n3", "user_id": "u1"})
	assert.Len(t, got, 2)
}

func TestWriteHookFailsWrite(t *testing.T) {
	s := New()
	boom := errors.New("network down")
	s.OnWrite(func(ctx context.Context, op, table string) error {
		if table == "connections" {
			return boom
		}
		return nil
	})

	_, err := s.Insert(context.Background(), "connections", rowstore.Row{"follower_id": "a", "following_id": "b"})
	assert.ErrorIs(t, err, boom)
	rows, _ := s.Select(context.Background(), "connections", nil)
	assert.Empty(t, rows)
}
