package cache

import (
	"iter"

	"github.com/anonto42/linkup/backend/internal/models"
)

// Lookup is Get with the result asserted to T.
func Lookup[T models.Entity](c *Cache, t models.Type, id string) (T, bool) {
	var zero T
	v, ok := c.Get(t, id)
	if !ok {
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Collect drains seq into a slice of T, skipping values of other types.
func Collect[T models.Entity](seq iter.Seq[models.Entity]) []T {
	var out []T
	for v := range seq {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Where adapts a typed predicate to List.
func Where[T models.Entity](pred func(T) bool) func(models.Entity) bool {
	return func(e models.Entity) bool {
		t, ok := e.(T)
		return ok && pred(t)
	}
}
