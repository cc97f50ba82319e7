// Package mongostore is a Row Store backed by MongoDB collections, one per
// table, with change streams as the change feed.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// uniquePairs mirrors the unique constraints of the hosted schema.
var uniquePairs = map[string][]string{
	"post_likes":       {"post_id", "user_id"},
	"connections":      {"follower_id", "following_id"},
	"job_applications": {"job_id", "applicant_id"},
}

// Store implements rowstore.Client over a mongo database.
type Store struct {
	db     *mongo.Database
	logger *zap.Logger
}

// New creates a store on db.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// EnsureIndexes creates the unique pair indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for table, cols := range uniquePairs {
		keys := bson.D{}
		for _, c := range cols {
			keys = append(keys, bson.E{Key: c, Value: 1})
		}
		_, err := s.db.Collection(table).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("create unique index on %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	cursor, err := s.db.Collection(table).Find(ctx, toQuery(filter), options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	rows := make([]rowstore.Row, len(docs))
	for i, d := range docs {
		rows[i] = fromDocument(d)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, table string, row rowstore.Row) (rowstore.Row, error) {
	if table == "connections" &&
		rowstore.ValueString(row["follower_id"]) == rowstore.ValueString(row["following_id"]) {
		return nil, fmt.Errorf("connections: a user cannot follow themselves")
	}
	r := row.Clone()
	if r.ID() == "" {
		r["id"] = uuid.NewString()
	}
	if v, ok := r["created_at"].(string); !ok || v == "" || strings.HasPrefix(v, "0001-01-01") {
		r["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if _, err := s.db.Collection(table).InsertOne(ctx, toDocument(r)); err != nil {
		return nil, classify(table, err)
	}
	return r, nil
}

func (s *Store) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) (rowstore.Row, error) {
	set := bson.M{}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		set[k] = v
	}
	var doc bson.M
	err := s.db.Collection(table).FindOneAndUpdate(ctx, toQuery(filter), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, classify(table, err)
	}
	return fromDocument(doc), nil
}

func (s *Store) Delete(ctx context.Context, table string, filter rowstore.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing unfiltered delete on %s", table)
	}
	if _, err := s.db.Collection(table).DeleteMany(ctx, toQuery(filter)); err != nil {
		return classify(table, err)
	}
	return nil
}

func classify(table string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", table, rowstore.ErrDuplicate, err)
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", table, err)
}

func toQuery(filter rowstore.Filter) bson.M {
	q := bson.M{}
	for col, v := range filter {
		if col == "id" {
			col = "_id"
		}
		q[col] = v
	}
	return q
}

func toDocument(r rowstore.Row) bson.M {
	doc := bson.M{}
	for k, v := range r {
		if k == "id" {
			k = "_id"
		}
		doc[k] = v
	}
	return doc
}

func fromDocument(doc bson.M) rowstore.Row {
	r := rowstore.Row{}
	for k, v := range doc {
		if k == "_id" {
			k = "id"
		}
		r[k] = fromValue(v)
	}
	return r
}

func fromValue(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC()
	case int32:
		return int64(x)
	case primitive.A:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = fromValue(e)
		}
		return out
	case bson.M:
		return map[string]interface{}(fromDocument(x))
	}
	return v
}
