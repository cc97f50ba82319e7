// Package reconciler merges pushed change events into the Entity Cache
// without clobbering in-flight optimistic edits.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"go.uber.org/zap"
)

// Scope is one change-stream subscription. Column, when set, is filtered
// to equal the current user's id.
type Scope struct {
	Table  models.Type
	Column string
}

// DefaultScopes are the streams a signed-in user listens to.
func DefaultScopes() []Scope {
	return []Scope{
		{Table: models.TypeNotification, Column: "user_id"},
		{Table: models.TypeConnection, Column: "follower_id"},
		{Table: models.TypeJobApplication, Column: "applicant_id"},
		{Table: models.TypePost},
	}
}

type deferredEvent struct {
	kind  rowstore.EventKind
	value models.Entity // nil for delete
	stamp time.Time
}

// Reconciler applies change events to the confirmed layer. Events for a key
// with a pending edit are queued and replayed in arrival order once the
// pending entry clears.
type Reconciler struct {
	cache   *cache.Cache
	store   rowstore.Client
	logger  *zap.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	deferred map[models.Key][]deferredEvent
	stop     func()
}

// New creates a reconciler writing into c. logger and m may be nil.
func New(c *cache.Cache, store rowstore.Client, logger *zap.Logger, m *metrics.Collector) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		cache:    c,
		store:    store,
		logger:   logger,
		metrics:  m,
		deferred: make(map[models.Key][]deferredEvent),
	}
	r.stop = c.OnSettle(r.drain)
	return r
}

// Close detaches the reconciler from the cache. Queued events are dropped.
func (r *Reconciler) Close() {
	r.stop()
	r.mu.Lock()
	r.deferred = make(map[models.Key][]deferredEvent)
	r.mu.Unlock()
}

// Apply merges one event: insert and update become a confirmed put, delete a
// removal. Rows of unknown tables or without an id are rejected.
func (r *Reconciler) Apply(ev rowstore.Event) error {
	t, err := tableType(ev.Table)
	if err != nil {
		return err
	}
	row := ev.Payload()
	if row.ID() == "" {
		return fmt.Errorf("%s %s event without id", ev.Table, ev.Kind)
	}
	key := models.Key{Type: t, ID: row.ID()}

	d := deferredEvent{kind: ev.Kind, stamp: ev.CommitTime}
	switch ev.Kind {
	case rowstore.EventInsert, rowstore.EventUpdate:
		d.value, err = models.Decode(t, row)
		if err != nil {
			return err
		}
		if s := models.StampOf(d.value); !s.IsZero() {
			d.stamp = s
		}
	case rowstore.EventDelete:
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a non-empty queue means an earlier event is still waiting; keep order
	if len(r.deferred[key]) == 0 && r.merge(key, d.value) {
		r.metrics.RealtimeEvent(t, string(ev.Kind))
		return nil
	}
	r.deferred[key] = append(r.deferred[key], d)
	r.metrics.DeferredEvent(t)
	r.logger.Debug("deferred change event behind pending edit",
		zap.String("table", string(t)),
		zap.String("id", key.ID),
		zap.String("event", string(ev.Kind)),
	)
	return nil
}

// Deferred returns the number of events queued for key.
func (r *Reconciler) Deferred(key models.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deferred[key])
}

func (r *Reconciler) merge(key models.Key, value models.Entity) bool {
	if c, ok := value.(models.Carrier); ok {
		if prev, ok := r.cache.Confirmed(key); ok {
			c.CarryFrom(prev)
		}
	}
	return r.cache.Merge(key, value)
}

// drain runs from the cache's settle hook with no cache lock held.
func (r *Reconciler) drain(key models.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.deferred[key]
	if len(queue) == 0 {
		return
	}
	delete(r.deferred, key)

	var resolved time.Time
	if v, ok := r.cache.Confirmed(key); ok {
		resolved = models.StampOf(v)
	}
	for i, d := range queue {
		if d.kind != rowstore.EventDelete && !d.stamp.IsZero() && d.stamp.Before(resolved) {
			r.logger.Debug("skipped deferred event older than resolved value",
				zap.String("table", string(key.Type)),
				zap.String("id", key.ID),
				zap.String("event", string(d.kind)),
			)
			continue
		}
		if !r.merge(key, d.value) {
			// a new edit was staged in between; wait for it to settle
			r.deferred[key] = queue[i:]
			return
		}
		r.metrics.RealtimeEvent(key.Type, string(d.kind))
	}
}

// Subscribe opens one change stream per scope for the session's user. The
// returned func tears all of them down; so does ctx ending or the session
// ending, whichever comes first. With no signed-in user it returns
// auth.ErrNoSession.
func (r *Reconciler) Subscribe(ctx context.Context, session *auth.Session, scopes ...Scope) (rowstore.Unsubscribe, error) {
	user, ok := session.CurrentUser()
	if !ok {
		return nil, auth.ErrNoSession
	}
	ended := session.Done()

	unsubs := make([]rowstore.Unsubscribe, 0, len(scopes))
	closeAll := func() {
		for _, u := range unsubs {
			u()
			r.metrics.SubscriptionClosed()
		}
	}
	for _, s := range scopes {
		var filter rowstore.Filter
		if s.Column != "" {
			filter = rowstore.Eq(s.Column, user.ID)
		}
		u, err := r.store.Subscribe(ctx, s.Table.Table(), filter, r.handle)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("subscribe to %s: %w", s.Table, err)
		}
		r.metrics.SubscriptionOpened()
		unsubs = append(unsubs, u)
	}
	r.logger.Info("realtime subscriptions opened",
		zap.String("user_id", user.ID),
		zap.Int("streams", len(unsubs)),
	)

	stop := make(chan struct{})
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			close(stop)
			closeAll()
			r.logger.Info("realtime subscriptions closed", zap.String("user_id", user.ID))
		})
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-ended:
		case <-stop:
			return
		}
		teardown()
	}()
	return teardown, nil
}

func (r *Reconciler) handle(ev rowstore.Event) {
	if err := r.Apply(ev); err != nil {
		r.logger.Warn("dropped change event",
			zap.String("table", ev.Table),
			zap.String("event", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

func tableType(table string) (models.Type, error) {
	for _, t := range models.Types {
		if t.Table() == table {
			return t, nil
		}
	}
	return "", fmt.Errorf("change event for unknown table %q", table)
}
