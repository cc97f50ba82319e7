package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type names an entity kind. Its value is the Row Store table backing it.
type Type string

const (
	TypeUser           Type = "profiles"
	TypePost           Type = "posts"
	TypeComment        Type = "post_comments"
	TypeLike           Type = "post_likes"
	TypeConnection     Type = "connections"
	TypeJob            Type = "jobs"
	TypeJobApplication Type = "job_applications"
	TypeNotification   Type = "notifications"
)

// Types lists every entity kind known to the cache.
var Types = []Type{
	TypeUser,
	TypePost,
	TypeComment,
	TypeLike,
	TypeConnection,
	TypeJob,
	TypeJobApplication,
	TypeNotification,
}

// Table returns the Row Store table name for the type.
func (t Type) Table() string { return string(t) }

// Entity is a typed record mirrored from the Row Store.
type Entity interface {
	EntityType() Type
	EntityID() string
}

// Stamped is implemented by entities carrying a last-modified time.
type Stamped interface {
	Stamp() time.Time
}

// Carrier is implemented by entities holding fields that are not table
// columns and must survive a row replacement.
type Carrier interface {
	CarryFrom(prev Entity)
}

// Key addresses one cache slot.
type Key struct {
	Type Type
	ID   string
}

func (k Key) String() string { return string(k.Type) + "/" + k.ID }

// KeyOf returns the cache key of an entity.
func KeyOf(e Entity) Key {
	return Key{Type: e.EntityType(), ID: e.EntityID()}
}

// StampOf returns the entity's last-modified time, or the zero time.
func StampOf(e Entity) time.Time {
	if s, ok := e.(Stamped); ok {
		return s.Stamp()
	}
	return time.Time{}
}

// New returns an empty entity of the given type.
func New(t Type) (Entity, error) {
	switch t {
	case TypeUser:
		return &User{}, nil
	case TypePost:
		return &Post{}, nil
	case TypeComment:
		return &Comment{}, nil
	case TypeLike:
		return &Like{}, nil
	case TypeConnection:
		return &Connection{}, nil
	case TypeJob:
		return &Job{}, nil
	case TypeJobApplication:
		return &JobApplication{}, nil
	case TypeNotification:
		return &Notification{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// Decode converts a Row Store row into a typed entity.
func Decode(t Type, row map[string]any) (Entity, error) {
	e, err := New(t)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", t, err)
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", t, err)
	}
	if e.EntityID() == "" {
		return nil, fmt.Errorf("decode %s row: missing id", t)
	}
	return e, nil
}

// DecodeAll decodes a batch of rows of one type.
func DecodeAll[R ~map[string]any](t Type, rows []R) ([]Entity, error) {
	out := make([]Entity, 0, len(rows))
	for _, row := range rows {
		e, err := Decode(t, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Encode converts an entity into a Row Store row keyed by JSON column name.
// Viewer-relative and computed fields are dropped.
func Encode(e Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityType(), err)
	}
	row := map[string]any{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityType(), err)
	}
	for _, col := range computedColumns[e.EntityType()] {
		delete(row, col)
	}
	return row, nil
}

var computedColumns = map[Type][]string{
	TypePost: {"likes_count", "comments_count", "is_liked"},
}
