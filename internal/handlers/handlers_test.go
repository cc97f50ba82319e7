package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/reconciler"
	"github.com/anonto42/linkup/backend/internal/router"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/anonto42/linkup/backend/internal/rowstore/memstore"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var now = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

type tokenVerifier map[string]auth.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

// flakyStore fails reads while down is set.
type flakyStore struct {
	*memstore.Store
	down atomic.Bool
}

func (s *flakyStore) Select(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	if s.down.Load() {
		return nil, errors.New("503 service unavailable")
	}
	return s.Store.Select(ctx, table, filter)
}

type app struct {
	e       *echo.Echo
	store   *flakyStore
	session *auth.Session
	cache   *cache.Cache
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := &flakyStore{Store: memstore.New()}
	ts := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339Nano) }
	store.Seed("profiles",
		rowstore.Row{"id": "me", "full_name": "Me Myself", "created_at": ts(-time.Hour)},
		rowstore.Row{"id": "alice", "full_name": "Alice", "created_at": ts(-time.Hour)},
	)
	store.Seed("posts",
		rowstore.Row{"id": "p1", "user_id": "alice", "content": "hello", "created_at": ts(-time.Minute)},
	)
	store.Seed("notifications",
		rowstore.Row{"id": "n1", "user_id": "me", "type": "like", "message": "Alice liked your post", "is_read": false, "created_at": ts(-time.Minute)},
	)

	c := cache.New()
	session := &auth.Session{}
	rec := reconciler.New(c, store, nil, nil)
	t.Cleanup(rec.Close)
	reg := services.NewRegistry(services.Deps{
		Coordinator: coordinator.New(c, nil, nil),
		Session:     session,
		Validator:   validators.NewValidator(),
		Now:         func() time.Time { return now },
	}, store)

	e := echo.New()
	e.Validator = validators.NewValidator()
	router.SetupRoutes(e, router.Dependencies{
		Services: reg,
		Session:  session,
		Verifier: tokenVerifier{"tok-me": {ID: "me", Name: "Me Myself"}},
		Realtime: rec,
		Scopes:   reconciler.DefaultScopes(),
	})
	t.Cleanup(session.End)
	return &app{e: e, store: store, session: session, cache: c}
}

func (a *app) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(t *testing.T) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/session", `{"token":"tok-me"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signed_in":false`)
}

func TestSessionLifecycle(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/feed", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/session", `{"token":"bogus"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.login(t)
	assert.Equal(t, len(reconciler.DefaultScopes()), a.store.Subscribers())

	rec = a.do(t, http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"me"`)

	rec = a.do(t, http.MethodDelete, "/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Eventually(t, func() bool { return a.store.Subscribers() == 0 }, waitFor, tick)

	rec = a.do(t, http.MethodGet, "/feed", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetFeed(t *testing.T) {
	a := newApp(t)
	a.login(t)

	rec := a.do(t, http.MethodGet, "/feed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)

	var data struct {
		Posts []struct {
			ID     string             `json:"id"`
			Author models.UserCompact `json:"author"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Posts, 1)
	assert.Equal(t, "Alice", data.Posts[0].Author.FullName)
	assert.EqualValues(t, 1, env.Meta["totalItems"])
}

func TestFeedReadFailureAnswersEmptyList(t *testing.T) {
	a := newApp(t)
	a.login(t)
	a.store.down.Store(true)

	rec := a.do(t, http.MethodGet, "/feed", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"posts":[]}`, string(decode(t, rec).Data))
}

func TestToggleLike(t *testing.T) {
	a := newApp(t)
	a.login(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/feed", "").Code)

	rec := a.do(t, http.MethodPost, "/posts/p1/like", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var post models.Post
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &post))
	assert.True(t, post.IsLiked)
	assert.Equal(t, 1, post.LikesCount)
}

func TestToggleLikeFailureIsTransient(t *testing.T) {
	a := newApp(t)
	a.login(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/feed", "").Code)
	a.store.OnWrite(func(context.Context, string, string) error { return errors.New("timeout") })

	rec := a.do(t, http.MethodPost, "/posts/p1/like", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	p, ok := cache.Lookup[*models.Post](a.cache, models.TypePost, "p1")
	require.True(t, ok)
	assert.False(t, p.IsLiked)
	assert.Equal(t, 0, p.LikesCount)
}

func TestToggleLikeWithoutWaiting(t *testing.T) {
	a := newApp(t)
	a.login(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/feed", "").Code)

	release := make(chan struct{})
	a.store.OnWrite(func(context.Context, string, string) error {
		<-release
		return nil
	})

	rec := a.do(t, http.MethodPost, "/posts/p1/like?wait=false", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_liked":true`)

	rec = a.do(t, http.MethodPost, "/posts/p1/like", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	assert.Eventually(t, func() bool {
		return !a.cache.HasPending(models.Key{Type: models.TypePost, ID: "p1"})
	}, waitFor, tick)
}

func TestCreateCommentValidation(t *testing.T) {
	a := newApp(t)
	a.login(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/feed", "").Code)

	rec := a.do(t, http.MethodPost, "/posts/p1/comments", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/posts/p1/comments", `{"content":"great"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/posts/p1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_name":"Me Myself"`)
}

func TestFollow(t *testing.T) {
	a := newApp(t)
	a.login(t)

	rec := a.do(t, http.MethodPost, "/users/me/follow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/users/alice/follow", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"following":true`)

	rec = a.do(t, http.MethodGet, "/network?following=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"following":["alice"]`)

	rec = a.do(t, http.MethodGet, "/users/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"following":true`)
}

func TestNotifications(t *testing.T) {
	a := newApp(t)
	a.login(t)

	rec := a.do(t, http.MethodGet, "/notifications?filter=unread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"n1"`)

	rec = a.do(t, http.MethodPut, "/notifications/n1/read", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/notifications/unread-count", "")
	assert.Contains(t, rec.Body.String(), `"unread_count":0`)

	rec = a.do(t, http.MethodDelete, "/notifications/n1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodDelete, "/notifications/n1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationStream(t *testing.T) {
	a := newApp(t)
	a.login(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/notifications", "").Code)

	srv := httptest.NewServer(a.e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				frames <- data
			}
		}
	}()

	first := <-frames
	assert.Contains(t, first, `"unread_count":1`)

	// a realtime insert lands in the cache and is pushed
	_, err = a.store.Insert(t.Context(), "notifications", rowstore.Row{
		"id": "n2", "user_id": "me", "type": "follow", "message": "Alice followed you", "is_read": false,
	})
	require.NoError(t, err)

	select {
	case next := <-frames:
		assert.Contains(t, next, `"unread_count":2`)
	case <-time.After(waitFor):
		t.Fatal("no frame after the insert")
	}
}

func TestJobs(t *testing.T) {
	a := newApp(t)
	a.login(t)

	rec := a.do(t, http.MethodPost, "/jobs", `{"title":"Go Engineer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/jobs", `{"title":"Go Engineer","company":"LinkUp"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job models.Job
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &job))

	rec = a.do(t, http.MethodPost, "/jobs/"+job.ID+"/apply", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, http.MethodPost, "/jobs/"+job.ID+"/apply", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/jobs?q=linkup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applied":true`)

	rec = a.do(t, http.MethodDelete, "/jobs/"+job.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSearch(t *testing.T) {
	a := newApp(t)
	a.login(t)

	rec := a.do(t, http.MethodGet, "/search?q=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_name":"Alice"`)
}
