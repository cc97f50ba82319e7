package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSizer map[models.Type][2]int

func (f fixedSizer) Len(t models.Type) (int, int) { return f[t][0], f[t][1] }

func TestNilCollectorRecordsNothing(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Mutation(models.TypePost, "confirmed")
		c.Rollback(models.TypePost)
		c.Refresh(models.TypePost, "ok")
		c.RealtimeEvent(models.TypePost, "insert")
		c.DeferredEvent(models.TypePost)
		c.SubscriptionOpened()
		c.SubscriptionClosed()
		c.WatchCache("linkup", fixedSizer{})
	})
}

func TestCounters(t *testing.T) {
	c := NewCollector("linkup")

	c.Mutation(models.TypePost, "confirmed")
	c.Mutation(models.TypePost, "confirmed")
	c.Mutation(models.TypeConnection, "remote_write_failed")
	c.Rollback(models.TypeConnection)
	c.SubscriptionOpened()
	c.SubscriptionOpened()
	c.SubscriptionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Mutations.WithLabelValues("posts", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Mutations.WithLabelValues("connections", "remote_write_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rollbacks.WithLabelValues("connections")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Subscriptions))
}

func TestHandlerServesCacheGauges(t *testing.T) {
	c := NewCollector("linkup")
	c.WatchCache("linkup", fixedSizer{models.TypePost: {3, 1}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `linkup_cache_entries{layer="confirmed",type="posts"} 3`)
	assert.Contains(t, string(body), `linkup_cache_entries{layer="pending",type="posts"} 1`)
}
