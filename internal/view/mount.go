// Package view guards a consumer's local state against results that arrive
// after the consumer has gone away.
package view

import (
	"context"
	"sync"

	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/syncerr"
)

// Mount tracks whether a consumer is still mounted. The zero value is not
// mounted; use NewMount.
type Mount struct {
	deliver sync.Mutex // serializes deliveries
	mu      sync.Mutex
	mounted bool
	done    chan struct{}
	name    string
}

// NewMount returns a mounted consumer.
func NewMount(name string) *Mount {
	return &Mount{mounted: true, done: make(chan struct{}), name: name}
}

// Name returns the label the mount was created with.
func (m *Mount) Name() string { return m.name }

// Mounted reports whether Unmount has not yet been called.
func (m *Mount) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Done is closed on Unmount.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// Unmount marks the consumer gone. Later deliveries are refused.
func (m *Mount) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	m.mounted = false
	close(m.done)
}

// Deliver runs fn if the consumer is still mounted and returns a StaleMount
// error otherwise. Deliveries run one at a time. fn may call Unmount; a
// delivery that has started runs to completion.
func (m *Mount) Deliver(fn func()) error {
	m.deliver.Lock()
	defer m.deliver.Unlock()
	if !m.Mounted() {
		return syncerr.New(syncerr.StaleMount, "deliver "+m.name, models.Key{}, nil)
	}
	fn()
	return nil
}

// Await waits for a mutation result and hands it to apply through the
// guard. The cache is already reconciled when the result is sent; only the
// consumer's own state is protected. It returns ctx.Err() if ctx ends
// first and a StaleMount error if the consumer unmounts first or by the
// time the result arrives.
func Await(ctx context.Context, m *Mount, results <-chan coordinator.Result, apply func(coordinator.Result)) error {
	select {
	case res := <-results:
		return m.Deliver(func() { apply(res) })
	case <-m.Done():
		return syncerr.New(syncerr.StaleMount, "await "+m.name, models.Key{}, nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}
