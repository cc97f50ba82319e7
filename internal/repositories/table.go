package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// table is the typed access to one Row Store table that every repository
// here is built on.
type table[T models.Entity] struct {
	store rowstore.Client
	typ   models.Type
}

func newTable[T models.Entity](store rowstore.Client, typ models.Type) table[T] {
	return table[T]{store: store, typ: typ}
}

func (t table[T]) list(ctx context.Context, filter rowstore.Filter) ([]T, error) {
	rows, err := t.store.Select(ctx, t.typ.Table(), filter)
	if err != nil {
		return nil, err
	}
	entities, err := models.DecodeAll(t.typ, rows)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.(T))
	}
	return out, nil
}

func (t table[T]) first(ctx context.Context, filter rowstore.Filter) (T, error) {
	var zero T
	items, err := t.list(ctx, filter)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s %s: %w", t.typ, filter, rowstore.ErrNotFound)
	}
	return items[0], nil
}

func (t table[T]) count(ctx context.Context, filter rowstore.Filter) (int, error) {
	rows, err := t.store.Select(ctx, t.typ.Table(), filter)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (t table[T]) insert(ctx context.Context, e T) (T, error) {
	var zero T
	row, err := models.Encode(e)
	if err != nil {
		return zero, err
	}
	created, err := t.store.Insert(ctx, t.typ.Table(), row)
	if err != nil {
		return zero, err
	}
	return t.decode(created)
}

func (t table[T]) update(ctx context.Context, id string, patch rowstore.Row) (T, error) {
	var zero T
	row, err := t.store.Update(ctx, t.typ.Table(), rowstore.Eq("id", id), patch)
	if err != nil {
		return zero, err
	}
	return t.decode(row)
}

func (t table[T]) delete(ctx context.Context, filter rowstore.Filter) error {
	return t.store.Delete(ctx, t.typ.Table(), filter)
}

func (t table[T]) decode(row rowstore.Row) (T, error) {
	var zero T
	e, err := models.Decode(t.typ, row)
	if err != nil {
		return zero, err
	}
	return e.(T), nil
}

// newestFirst sorts by stamp, newest first, breaking ties by id.
func newestFirst[T models.Entity](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := models.StampOf(items[i]), models.StampOf(items[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return items[i].EntityID() > items[j].EntityID()
	})
}
