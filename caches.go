package wirebind

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// errNotFound reports a cache miss. The caller compiles the value and
// follows up with Set or SetErr.
var errNotFound = errors.New("not found")

// cache memoizes compiled per-type artifacts. Compiled values are
// immutable, so lookups after the first compile are lock-free reads.
// Two goroutines can race to compile the same type; both produce
// equivalent artifacts, and the loser's is discarded.
type cache[V any] struct {
	m sync.Map
}

type cacheErr struct{ err error }

func (c *cache[V]) Get(t reflect.Type) (V, error) {
	var zero V
	ent, ok := c.m.Load(t)
	if !ok {
		return zero, errNotFound
	}
	if ce, ok := ent.(cacheErr); ok {
		return zero, ce.err
	}
	if val, ok := ent.(V); ok {
		return val, nil
	}
	panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
}

func (c *cache[V]) Set(t reflect.Type, val V) {
	c.m.LoadOrStore(t, val)
}

func (c *cache[V]) SetErr(t reflect.Type, err error) {
	c.m.LoadOrStore(t, cacheErr{err})
}
