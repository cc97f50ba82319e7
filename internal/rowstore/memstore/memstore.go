// Package memstore is an in-process Row Store. It enforces the same unique
// pairs and self-follow check as the hosted schema and delivers change
// events synchronously, which makes it the store of choice for tests and
// offline local runs.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/google/uuid"
)

// WriteHook runs before every write. A non-nil error fails the write
// without touching any table.
type WriteHook func(ctx context.Context, op, table string) error

type subscription struct {
	table   string
	filter  rowstore.Filter
	onEvent func(rowstore.Event)
}

// Store holds tables as ordered row slices.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]rowstore.Row
	unique  map[string][][]string
	checks  map[string][]func(rowstore.Row) error
	subs    map[int]subscription
	nextSub int
	hook    WriteHook
	now     func() time.Time
}

// New returns an empty store carrying the LinkUp constraints.
func New() *Store {
	s := &Store{
		tables: make(map[string][]rowstore.Row),
		unique: make(map[string][][]string),
		checks: make(map[string][]func(rowstore.Row) error),
		subs:   make(map[int]subscription),
		now:    time.Now,
	}
	s.Unique("post_likes", "post_id", "user_id")
	s.Unique("connections", "follower_id", "following_id")
	s.Unique("job_applications", "job_id", "applicant_id")
	s.Check("connections", func(r rowstore.Row) error {
		if rowstore.ValueString(r["follower_id"]) == rowstore.ValueString(r["following_id"]) {
			return fmt.Errorf("connections: a user cannot follow themselves")
		}
		return nil
	})
	return s
}

// Unique adds a unique constraint over columns of table.
func (s *Store) Unique(table string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[table] = append(s.unique[table], columns)
}

// Check adds a row check run on insert and update.
func (s *Store) Check(table string, fn func(rowstore.Row) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[table] = append(s.checks[table], fn)
}

// OnWrite installs hook, replacing any previous one. nil removes it.
func (s *Store) OnWrite(hook WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Seed inserts rows without running hooks or emitting events.
func (s *Store) Seed(table string, rows ...rowstore.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], r.Clone())
	}
}

func (s *Store) runHook(ctx context.Context, op, table string) error {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook == nil {
		return nil
	}
	return hook(ctx, op, table)
}

func (s *Store) Select(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rowstore.Row
	for _, r := range s.tables[table] {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row rowstore.Row) (rowstore.Row, error) {
	if err := s.runHook(ctx, "insert", table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	r := row.Clone()
	if r.ID() == "" {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok || isZeroTime(r["created_at"]) {
		r["created_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}
	if err := s.validateLocked(table, r, ""); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.tables[table] = append(s.tables[table], r)
	subs := s.matchingLocked(table, r)
	s.mu.Unlock()

	s.emit(subs, rowstore.Event{Kind: rowstore.EventInsert, Table: table, Record: r.Clone(), CommitTime: s.now()})
	return r.Clone(), nil
}

func (s *Store) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) (rowstore.Row, error) {
	if err := s.runHook(ctx, "update", table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	type change struct {
		old, new rowstore.Row
		subs     []subscription
	}
	var changes []change
	rows := s.tables[table]
	for i, r := range rows {
		if !filter.Matches(r) {
			continue
		}
		next := r.Clone()
		for k, v := range patch {
			next[k] = v
		}
		if _, ok := r["updated_at"]; ok {
			if _, patched := patch["updated_at"]; !patched {
				next["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
			}
		}
		if err := s.validateLocked(table, next, r.ID()); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rows[i] = next
		changes = append(changes, change{old: r, new: next, subs: s.matchingLocked(table, next)})
	}
	s.mu.Unlock()

	if len(changes) == 0 {
		return nil, rowstore.ErrNotFound
	}
	for _, c := range changes {
		s.emit(c.subs, rowstore.Event{Kind: rowstore.EventUpdate, Table: table, Record: c.new.Clone(), OldRecord: c.old.Clone(), CommitTime: s.now()})
	}
	return changes[0].new.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, table string, filter rowstore.Filter) error {
	if err := s.runHook(ctx, "delete", table); err != nil {
		return err
	}

	s.mu.Lock()
	type removal struct {
		old  rowstore.Row
		subs []subscription
	}
	var removed []removal
	kept := s.tables[table][:0]
	for _, r := range s.tables[table] {
		if filter.Matches(r) {
			removed = append(removed, removal{old: r, subs: s.matchingLocked(table, r)})
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	s.mu.Unlock()

	for _, rm := range removed {
		s.emit(rm.subs, rowstore.Event{Kind: rowstore.EventDelete, Table: table, OldRecord: rm.old.Clone(), CommitTime: s.now()})
	}
	return nil
}

// Subscribe registers onEvent for changes to table matching filter. Events
// are delivered on the writer's goroutine after the write is applied.
func (s *Store) Subscribe(ctx context.Context, table string, filter rowstore.Filter, onEvent func(rowstore.Event)) (rowstore.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = subscription{table: table, filter: filter, onEvent: onEvent}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}, nil
}

// Subscribers returns the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) validateLocked(table string, r rowstore.Row, selfID string) error {
	for _, check := range s.checks[table] {
		if err := check(r); err != nil {
			return err
		}
	}
	for _, cols := range s.unique[table] {
		for _, other := range s.tables[table] {
			if other.ID() == selfID && selfID != "" {
				continue
			}
			if sameColumns(other, r, cols) {
				return fmt.Errorf("%w: %s (%s)", rowstore.ErrDuplicate, table, strings.Join(cols, ", "))
			}
		}
	}
	for _, other := range s.tables[table] {
		if other.ID() == r.ID() && other.ID() != selfID {
			return fmt.Errorf("%w: %s (id)", rowstore.ErrDuplicate, table)
		}
	}
	return nil
}

func (s *Store) matchingLocked(table string, r rowstore.Row) []subscription {
	var out []subscription
	for _, sub := range s.subs {
		if sub.table == table && sub.filter.Matches(r) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *Store) emit(subs []subscription, ev rowstore.Event) {
	for _, sub := range subs {
		sub.onEvent(ev)
	}
}

func sameColumns(a, b rowstore.Row, cols []string) bool {
	for _, c := range cols {
		av, aok := a[c]
		bv, bok := b[c]
		if !aok || !bok || rowstore.ValueString(av) != rowstore.ValueString(bv) {
			return false
		}
	}
	return true
}

func isZeroTime(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || strings.HasPrefix(x, "0001-01-01")
	case time.Time:
		return x.IsZero()
	}
	return false
}
