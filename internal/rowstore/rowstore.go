// Package rowstore defines the client of the hosted table store LinkUp syncs
// against: table CRUD with equality filters and a per-table change stream.
package rowstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// Row is one table row keyed by column name.
type Row map[string]any

// ID returns the row's "id" column as a string.
func (r Row) ID() string {
	if v, ok := r["id"].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter is a conjunction of column = value predicates.
type Filter map[string]any

// Eq builds a single-column filter.
func Eq(column string, value any) Filter {
	return Filter{column: value}
}

// And returns a copy of f with column = value added.
func (f Filter) And(column string, value any) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[column] = value
	return out
}

// Matches reports whether row satisfies every predicate of f.
func (f Filter) Matches(row Row) bool {
	for col, want := range f {
		got, ok := row[col]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// Columns returns the filter columns in stable order.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// String renders the filter in PostgREST form, e.g. "user_id=eq.u1".
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, c := range f.Columns() {
		parts = append(parts, c+"=eq."+ValueString(f[c]))
	}
	return strings.Join(parts, "&")
}

// EventKind is the kind of a change event.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// Event is one pushed change.
type Event struct {
	Kind       EventKind
	Table      string
	Record     Row // new row for insert/update
	OldRecord  Row // previous row; for delete, at least the primary key
	CommitTime time.Time
}

// Payload returns the row that identifies the changed entity.
func (e Event) Payload() Row {
	if e.Kind == EventDelete {
		return e.OldRecord
	}
	return e.Record
}

// Unsubscribe tears down a subscription. Safe to call more than once.
type Unsubscribe func()

// Client is the Row Store. All calls may fail with a transport or
// authorization error; callers treat any failure as opaque.
type Client interface {
	Select(ctx context.Context, table string, filter Filter) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error)
	Delete(ctx context.Context, table string, filter Filter) error
	Subscribe(ctx context.Context, table string, filter Filter, onEvent func(Event)) (Unsubscribe, error)
}

var (
	ErrNotFound  = errors.New("row not found")
	ErrDuplicate = errors.New("duplicate key")
)
