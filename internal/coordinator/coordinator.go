// Package coordinator applies optimistic mutations to the Entity Cache and
// reconciles them with the outcome of the remote write.
package coordinator

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/syncerr"
	"go.uber.org/zap"
)

// Updater computes the optimistic value from the current read (nil when
// absent). Returning nil stages an optimistic delete.
type Updater func(current models.Entity) models.Entity

// RemoteWrite performs the remote call and returns the server's value.
// A nil value with a nil error confirms a delete.
type RemoteWrite func(ctx context.Context) (models.Entity, error)

// ReadFunc loads rows for an initial load or refetch.
type ReadFunc func(ctx context.Context) ([]models.Entity, error)

// Coordinator is the only writer of the cache besides the reconciler.
type Coordinator struct {
	cache   *cache.Cache
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates a coordinator over c. logger and m may be nil.
func New(c *cache.Cache, logger *zap.Logger, m *metrics.Collector) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cache: c, logger: logger, metrics: m}
}

// Cache returns the cache this coordinator writes.
func (co *Coordinator) Cache() *cache.Cache { return co.cache }

// Mutate stages updater's value in the pending layer before anything else,
// then runs write. On success the returned value becomes confirmed, which
// clears the pending entry. On failure the mutation's own pending entry is
// discarded and the result reports RemoteWriteFailed. There is no retry.
//
// Mutations on the same key are not serialized: the last staged value is
// what readers see and the last remote write to finish decides the
// confirmed value. Callers that toggle must coalesce.
func (co *Coordinator) Mutate(ctx context.Context, key models.Key, update Updater, write RemoteWrite) Result {
	tok := co.stage(key, update)
	return co.resolve(ctx, key, tok, write)
}

// MutateAsync stages synchronously and resolves the remote write on a new
// goroutine. The channel receives exactly one Result.
func (co *Coordinator) MutateAsync(ctx context.Context, key models.Key, update Updater, write RemoteWrite) <-chan Result {
	tok := co.stage(key, update)
	out := make(chan Result, 1)
	go func() {
		out <- co.resolve(ctx, key, tok, write)
	}()
	return out
}

func (co *Coordinator) stage(key models.Key, update Updater) cache.Token {
	current, _ := co.cache.Get(key.Type, key.ID)
	return co.cache.Stage(key, update(current))
}

func (co *Coordinator) resolve(ctx context.Context, key models.Key, tok cache.Token, write RemoteWrite) Result {
	value, err := write(ctx)
	if err != nil {
		co.cache.Discard(key, tok)
		co.metrics.Rollback(key.Type)
		co.metrics.Mutation(key.Type, RemoteWriteFailed.String())
		co.logger.Warn("remote write failed, rolled back",
			zap.String("table", string(key.Type)),
			zap.String("id", key.ID),
			zap.Error(err),
		)
		return Result{
			Outcome: RemoteWriteFailed,
			Err:     syncerr.New(syncerr.RemoteWriteFailed, "mutate", key, err),
		}
	}

	switch {
	case value == nil:
		co.cache.Remove(key.Type, key.ID)
	case models.KeyOf(value) != key:
		// server assigned a different identity; the staged slot is obsolete
		co.cache.Discard(key, tok)
		co.cache.Put(value.EntityType(), value.EntityID(), value, cache.Confirmed)
	default:
		co.cache.Put(key.Type, key.ID, value, cache.Confirmed)
	}
	co.metrics.Mutation(key.Type, Confirmed.String())
	co.logger.Debug("mutation confirmed",
		zap.String("table", string(key.Type)),
		zap.String("id", key.ID),
	)
	return Result{Outcome: Confirmed, Value: value}
}

// Refresh runs read and writes its rows into the confirmed layer. Keys with
// an unresolved pending edit are left alone; their remote write will settle
// them. A failing read returns a RemoteReadFailed error and changes nothing.
func (co *Coordinator) Refresh(ctx context.Context, t models.Type, read ReadFunc) ([]models.Entity, error) {
	rows, err := read(ctx)
	if err != nil {
		co.metrics.Refresh(t, "failed")
		co.logger.Warn("remote read failed", zap.String("table", string(t)), zap.Error(err))
		return nil, syncerr.New(syncerr.RemoteReadFailed, "refresh", models.Key{Type: t}, err)
	}
	for _, e := range rows {
		key := models.KeyOf(e)
		if co.cache.HasPending(key) {
			continue
		}
		co.cache.Put(key.Type, key.ID, e, cache.Confirmed)
	}
	co.metrics.Refresh(t, "ok")
	return rows, nil
}

// Prune removes confirmed entries of type t matching pred that are absent
// from keep. Used after a full refetch so rows deleted remotely while no
// subscription was open do not linger. Pending keys are left alone.
func (co *Coordinator) Prune(t models.Type, pred func(models.Entity) bool, keep []models.Entity) {
	present := make(map[string]struct{}, len(keep))
	for _, e := range keep {
		present[e.EntityID()] = struct{}{}
	}
	var stale []string
	for e := range co.cache.List(t, pred) {
		if _, ok := present[e.EntityID()]; ok {
			continue
		}
		if co.cache.HasPending(models.KeyOf(e)) {
			continue
		}
		stale = append(stale, e.EntityID())
	}
	for _, id := range stale {
		co.cache.Remove(t, id)
	}
}
