package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type changeEvent struct {
	OperationType string              `bson:"operationType"`
	FullDocument  bson.M              `bson:"fullDocument"`
	DocumentKey   bson.M              `bson:"documentKey"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime"`
	Namespace     struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
}

func (c changeEvent) event() (rowstore.Event, bool) {
	ev := rowstore.Event{
		Table:      c.Namespace.Coll,
		CommitTime: time.Unix(int64(c.ClusterTime.T), 0).UTC(),
	}
	switch c.OperationType {
	case "insert":
		ev.Kind = rowstore.EventInsert
		ev.Record = fromDocument(c.FullDocument)
	case "update", "replace":
		if c.FullDocument == nil {
			// looked-up document was deleted before the lookup ran
			return ev, false
		}
		ev.Kind = rowstore.EventUpdate
		ev.Record = fromDocument(c.FullDocument)
	case "delete":
		ev.Kind = rowstore.EventDelete
		ev.OldRecord = fromDocument(c.DocumentKey)
	default:
		return ev, false
	}
	return ev, true
}

// Subscribe opens a change stream on table. Delete events only carry the
// document key, so they are delivered without applying filter. Requires a
// replica set.
func (s *Store) Subscribe(ctx context.Context, table string, filter rowstore.Filter, onEvent func(rowstore.Event)) (rowstore.Unsubscribe, error) {
	match := bson.D{}
	if len(filter) > 0 {
		fields := bson.A{}
		for col, v := range filter {
			if col == "id" {
				col = "_id"
			}
			fields = append(fields, bson.M{"fullDocument." + col: v})
		}
		match = bson.D{{Key: "$or", Value: bson.A{
			bson.M{"operationType": "delete"},
			bson.M{"$and": fields},
		}}}
	}
	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	stream, err := s.db.Collection(table).Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", table, err)
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			var c changeEvent
			if err := stream.Decode(&c); err != nil {
				s.logger.Warn("undecodable change event", zap.String("table", table), zap.Error(err))
				continue
			}
			if ev, ok := c.event(); ok {
				onEvent(ev)
			}
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			s.logger.Warn("change stream ended", zap.String("table", table), zap.Error(err))
		}
	}()

	return rowstore.Unsubscribe(cancel), nil
}
