// Package cache is the process-wide Entity Cache: the last server-confirmed
// value of every mirrored row plus an overlay of pending local edits.
//
// Reads prefer the pending overlay, then the confirmed layer. Only the
// coordinator and the reconciler write here; views read.
package cache

import (
	"iter"
	"sort"
	"sync"

	"github.com/anonto42/linkup/backend/internal/models"
)

// Layer selects which side of the cache a Put writes.
type Layer int

const (
	Confirmed Layer = iota
	Pending
)

func (l Layer) String() string {
	if l == Pending {
		return "pending"
	}
	return "confirmed"
}

// Token identifies one staged pending write.
type Token uint64

type pendingEntry struct {
	value models.Entity // nil is a tombstone
	token Token
}

// Cache maps (type, id) to entities. The zero value is not usable; call New.
type Cache struct {
	mu        sync.RWMutex
	confirmed map[models.Key]models.Entity
	pending   map[models.Key]pendingEntry
	nextToken Token

	hookMu   sync.Mutex
	nextHook int
	onSettle map[int]func(models.Key)
	onChange map[int]func(models.Key)
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		confirmed: make(map[models.Key]models.Entity),
		pending:   make(map[models.Key]pendingEntry),
		onSettle:  make(map[int]func(models.Key)),
		onChange:  make(map[int]func(models.Key)),
	}
}

// Get returns the pending value if present, else the confirmed value.
// A pending tombstone reads as absent.
func (c *Cache) Get(t models.Type, id string) (models.Entity, bool) {
	key := models.Key{Type: t, ID: id}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readLocked(key)
}

func (c *Cache) readLocked(key models.Key) (models.Entity, bool) {
	if p, ok := c.pending[key]; ok {
		return p.value, p.value != nil
	}
	v, ok := c.confirmed[key]
	return v, ok
}

// Confirmed returns the confirmed value, ignoring the pending overlay.
func (c *Cache) Confirmed(key models.Key) (models.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.confirmed[key]
	return v, ok
}

// HasPending reports whether key has an unresolved local edit.
func (c *Cache) HasPending(key models.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[key]
	return ok
}

// Put writes value into a layer. A pending put never touches the confirmed
// layer; a confirmed put clears any pending entry for the key. A nil value
// in the pending layer stages an optimistic delete; in the confirmed layer
// it behaves like Remove.
func (c *Cache) Put(t models.Type, id string, value models.Entity, layer Layer) {
	key := models.Key{Type: t, ID: id}
	if layer == Pending {
		c.Stage(key, value)
		return
	}
	if value == nil {
		c.Remove(t, id)
		return
	}
	c.mu.Lock()
	_, settled := c.pending[key]
	delete(c.pending, key)
	c.confirmed[key] = value
	c.mu.Unlock()
	c.notify(key, settled)
}

// Remove drops the confirmed value and any pending entry for the key.
func (c *Cache) Remove(t models.Type, id string) {
	key := models.Key{Type: t, ID: id}
	c.mu.Lock()
	_, settled := c.pending[key]
	_, had := c.confirmed[key]
	delete(c.pending, key)
	delete(c.confirmed, key)
	c.mu.Unlock()
	if had || settled {
		c.notify(key, settled)
	}
}

// Merge writes value into the confirmed layer only if key has no pending
// entry; a nil value removes the key. The check and the write happen under
// one lock. It reports false, and changes nothing, when a pending edit exists.
func (c *Cache) Merge(key models.Key, value models.Entity) bool {
	c.mu.Lock()
	if _, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return false
	}
	_, had := c.confirmed[key]
	if value == nil {
		delete(c.confirmed, key)
	} else {
		c.confirmed[key] = value
	}
	c.mu.Unlock()
	if value != nil || had {
		c.notify(key, false)
	}
	return true
}

// Stage writes value into the pending layer and returns a token that owns
// the entry until another Stage on the same key replaces it.
func (c *Cache) Stage(key models.Key, value models.Entity) Token {
	c.mu.Lock()
	c.nextToken++
	tok := c.nextToken
	c.pending[key] = pendingEntry{value: value, token: tok}
	c.mu.Unlock()
	c.notify(key, false)
	return tok
}

// Discard removes the pending entry for key if tok still owns it, restoring
// the confirmed value for readers. It reports whether anything was removed.
func (c *Cache) Discard(key models.Key, tok Token) bool {
	c.mu.Lock()
	p, ok := c.pending[key]
	if !ok || p.token != tok {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, key)
	c.mu.Unlock()
	c.notify(key, true)
	return true
}

// List yields every visible entity of type t accepted by pred (nil accepts
// all), in id order. Each range re-reads the live maps, so the sequence is
// restartable and reflects writes made between iterations.
func (c *Cache) List(t models.Type, pred func(models.Entity) bool) iter.Seq[models.Entity] {
	return func(yield func(models.Entity) bool) {
		for _, key := range c.keys(t) {
			c.mu.RLock()
			v, ok := c.readLocked(key)
			c.mu.RUnlock()
			if !ok || (pred != nil && !pred(v)) {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (c *Cache) keys(t models.Type) []models.Key {
	c.mu.RLock()
	seen := make(map[models.Key]struct{}, len(c.confirmed))
	for k := range c.confirmed {
		if k.Type == t {
			seen[k] = struct{}{}
		}
	}
	for k := range c.pending {
		if k.Type == t {
			seen[k] = struct{}{}
		}
	}
	c.mu.RUnlock()

	keys := make([]models.Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

// Len returns the number of confirmed and pending entries of type t.
func (c *Cache) Len(t models.Type) (confirmed, pending int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k := range c.confirmed {
		if k.Type == t {
			confirmed++
		}
	}
	for k := range c.pending {
		if k.Type == t {
			pending++
		}
	}
	return confirmed, pending
}

// OnSettle registers fn to run after a pending entry for any key clears.
// fn runs on the writer's goroutine with no cache lock held.
func (c *Cache) OnSettle(fn func(models.Key)) (cancel func()) {
	return c.addHook(c.onSettle, fn)
}

// OnChange registers fn to run after any write that may change what Get
// returns for a key.
func (c *Cache) OnChange(fn func(models.Key)) (cancel func()) {
	return c.addHook(c.onChange, fn)
}

func (c *Cache) addHook(hooks map[int]func(models.Key), fn func(models.Key)) func() {
	c.hookMu.Lock()
	c.nextHook++
	id := c.nextHook
	hooks[id] = fn
	c.hookMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.hookMu.Lock()
			delete(hooks, id)
			c.hookMu.Unlock()
		})
	}
}

func (c *Cache) notify(key models.Key, settled bool) {
	c.hookMu.Lock()
	var fns []func(models.Key)
	if settled {
		for _, fn := range c.onSettle {
			fns = append(fns, fn)
		}
	}
	for _, fn := range c.onChange {
		fns = append(fns, fn)
	}
	c.hookMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}
