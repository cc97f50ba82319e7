package mongostore

import (
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentMapping(t *testing.T) {
	doc := toDocument(rowstore.Row{"id": "p1", "content": "hi"})
	assert.Equal(t, "p1", doc["_id"])
	_, hasID := doc["id"]
	assert.False(t, hasID)

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	row := fromDocument(bson.M{
		"_id":        "p1",
		"created_at": primitive.NewDateTimeFromTime(when),
		"count":      int32(3),
	})
	assert.Equal(t, "p1", row.ID())
	assert.Equal(t, when, row["created_at"])
	assert.Equal(t, int64(3), row["count"])
}

func TestQueryMapsID(t *testing.T) {
	q := toQuery(rowstore.Eq("id", "n1").And("user_id", "u1"))
	assert.Equal(t, bson.M{"_id": "n1", "user_id": "u1"}, q)
}

func TestChangeEventMapping(t *testing.T) {
	ins := changeEvent{OperationType: "insert", FullDocument: bson.M{"_id": "n1", "user_id": "u1"}}
	ins.Namespace.Coll = "notifications"
	ev, ok := ins.event()
	assert.True(t, ok)
	assert.Equal(t, rowstore.EventInsert, ev.Kind)
	assert.Equal(t, "notifications", ev.Table)
	assert.Equal(t, "n1", ev.Record.ID())

	del := changeEvent{OperationType: "delete", DocumentKey: bson.M{"_id": "n1"}}
	ev, ok = del.event()
	assert.True(t, ok)
	assert.Equal(t, "n1", ev.Payload().ID())

	gone := changeEvent{OperationType: "update"}
	_, ok = gone.event()
	assert.False(t, ok)

	_, ok = changeEvent{OperationType: "invalidate"}.event()
	assert.False(t, ok)
}
