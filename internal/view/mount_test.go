package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverWhileMounted(t *testing.T) {
	m := NewMount("feed")
	ran := false
	require.NoError(t, m.Deliver(func() { ran = true }))
	assert.True(t, ran)
}

func TestDeliverAfterUnmountIsStale(t *testing.T) {
	m := NewMount("feed")
	m.Unmount()
	m.Unmount()

	ran := false
	err := m.Deliver(func() { ran = true })
	assert.False(t, ran)
	assert.True(t, errors.Is(err, syncerr.ErrStaleMount))
	assert.False(t, m.Mounted())
}

func TestDeliverMayUnmount(t *testing.T) {
	m := NewMount("stream")
	finished := make(chan error, 1)
	go func() { finished <- m.Deliver(m.Unmount) }()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("delivery that unmounts did not return")
	}
	assert.False(t, m.Mounted())
	assert.ErrorIs(t, m.Deliver(func() {}), syncerr.ErrStaleMount)
}

func TestLateResultIsDroppedButCacheIsReconciled(t *testing.T) {
	c := cache.New()
	c.Put(models.TypePost, "p1", &models.Post{ID: "p1", LikesCount: 3}, cache.Confirmed)
	co := coordinator.New(c, nil, nil)
	m := NewMount("feed")
	release := make(chan struct{})

	results := co.MutateAsync(context.Background(), models.Key{Type: models.TypePost, ID: "p1"},
		func(cur models.Entity) models.Entity {
			p := cur.(*models.Post).Clone()
			p.LikesCount++
			p.IsLiked = true
			return p
		},
		func(ctx context.Context) (models.Entity, error) {
			<-release
			return &models.Post{ID: "p1", LikesCount: 4, IsLiked: true}, nil
		})

	m.Unmount()
	close(release)

	localLikes := 3
	err := Await(context.Background(), m, results, func(res coordinator.Result) {
		localLikes = res.Value.(*models.Post).LikesCount
	})
	assert.Equal(t, syncerr.StaleMount, syncerr.KindOf(err))
	assert.Equal(t, 3, localLikes, "unmounted consumer state must not change")

	// the process-wide cache still settles
	require.Eventually(t, func() bool {
		return !c.HasPending(models.Key{Type: models.TypePost, ID: "p1"})
	}, timeout, tick)
	p, _ := cache.Lookup[*models.Post](c, models.TypePost, "p1")
	assert.Equal(t, 4, p.LikesCount)
}

func TestAwaitDeliversToMountedConsumer(t *testing.T) {
	m := NewMount("notifications")
	results := make(chan coordinator.Result, 1)
	results <- coordinator.Result{Outcome: coordinator.Confirmed}

	var got coordinator.Result
	require.NoError(t, Await(context.Background(), m, results, func(res coordinator.Result) { got = res }))
	assert.True(t, got.OK())
}

func TestAwaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Await(ctx, NewMount("jobs"), make(chan coordinator.Result), func(coordinator.Result) {})
	assert.ErrorIs(t, err, context.Canceled)
}

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)
