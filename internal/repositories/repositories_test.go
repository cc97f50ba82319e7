package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/anonto42/linkup/backend/internal/rowstore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRowStoreLikeRepository(memstore.New())

	like, err := repo.CreateLike(ctx, &models.Like{ID: "l1", PostID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "l1", like.ID)
	assert.False(t, like.CreatedAt.IsZero(), "store fills created_at")

	_, err = repo.CreateLike(ctx, &models.Like{ID: "l2", PostID: "p1", UserID: "u1"})
	assert.True(t, errors.Is(err, rowstore.ErrDuplicate))

	liked, err := repo.HasUserLikedPost(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, liked)

	n, err := repo.GetLikesCountByPostID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.DeleteLike(ctx, "p1", "u1"))
	liked, err = repo.HasUserLikedPost(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestPostRepositoryOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRowStorePostRepository(memstore.New())
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		_, err := repo.CreatePost(ctx, &models.Post{ID: id, UserID: "u1", Content: id, CreatedAt: base.Add(offset)})
		require.NoError(t, err)
	}

	posts, err := repo.GetAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	found, err := repo.SearchPosts(ctx, "MI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "mid", found[0].ID)

	_, err = repo.GetPostByID(ctx, "missing")
	assert.True(t, errors.Is(err, rowstore.ErrNotFound))
}

func TestFollowRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRowStoreFollowRepository(memstore.New())

	_, err := repo.CreateFollow(ctx, &models.Connection{ID: "c1", FollowerID: "me", FollowingID: "u1"})
	require.NoError(t, err)
	_, err = repo.CreateFollow(ctx, &models.Connection{ID: "c2", FollowerID: "me", FollowingID: "u2"})
	require.NoError(t, err)
	_, err = repo.CreateFollow(ctx, &models.Connection{ID: "c3", FollowerID: "me", FollowingID: "me"})
	assert.Error(t, err)

	ids, err := repo.GetFollowingIDs(ctx, "me")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)

	require.NoError(t, repo.DeleteFollow(ctx, "me", "u1"))
	ok, err := repo.IsFollowing(ctx, "me", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRowStoreNotificationRepository(memstore.New())

	_, err := repo.CreateNotification(ctx, &models.Notification{ID: "n1", UserID: "u1", Type: "like"})
	require.NoError(t, err)
	_, err = repo.CreateNotification(ctx, &models.Notification{ID: "n2", UserID: "u1", Type: "follow"})
	require.NoError(t, err)

	n, err := repo.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	read, err := repo.MarkAsRead(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	n, err = repo.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.DeleteNotification(ctx, "n2"))
	all, err := repo.GetByRecipientID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGroupByDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	at := func(id string, d time.Duration) *models.Notification {
		return &models.Notification{ID: id, CreatedAt: now.Add(-d)}
	}
	ns := []*models.Notification{
		at("today", time.Hour),
		at("yesterday", 20*time.Hour),
		at("week", 4*24*time.Hour),
		at("older", 30*24*time.Hour),
	}

	today, yesterday, week, older := GroupByDay(ns, now)
	assert.Equal(t, "today", today[0].ID)
	assert.Equal(t, "yesterday", yesterday[0].ID)
	assert.Equal(t, "week", week[0].ID)
	assert.Equal(t, "older", older[0].ID)
}

func TestJobRepositoryRejectsDoubleApplication(t *testing.T) {
	ctx := context.Background()
	repo := NewRowStoreJobRepository(memstore.New())

	_, err := repo.CreateJob(ctx, &models.Job{ID: "j1", Title: "Go engineer", Company: "LinkUp", PostedBy: "u9"})
	require.NoError(t, err)
	_, err = repo.CreateApplication(ctx, &models.JobApplication{ID: "a1", JobID: "j1", ApplicantID: "u1", Status: "pending"})
	require.NoError(t, err)
	_, err = repo.CreateApplication(ctx, &models.JobApplication{ID: "a2", JobID: "j1", ApplicantID: "u1", Status: "pending"})
	assert.True(t, errors.Is(err, rowstore.ErrDuplicate))

	apps, err := repo.GetApplicationsByApplicant(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}
