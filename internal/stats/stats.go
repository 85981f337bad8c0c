// Package stats serves expensive aggregate counters from a TTL cache.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnknownStat is returned for names that were never registered.
var ErrUnknownStat = errors.New("unknown statistic")

// Func computes one statistic.
type Func func(ctx context.Context) (int64, error)

type entry struct {
	value      int64
	computedAt time.Time
	refreshing bool
}

// Cache recomputes a statistic at most once per TTL.  While one caller
// refreshes an expired value, other callers get the previous value instead of
// waiting; callers with no value at all share the in-flight computation.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	funcs   map[string]Func
	entries map[string]*entry
	group   singleflight.Group
}

func New(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		funcs:   map[string]Func{},
		entries: map[string]*entry{},
	}
}

// Register adds or replaces the function behind name and drops its cached
// value.
func (c *Cache) Register(name string, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[name] = fn
	delete(c.entries, name)
}

// Names lists registered statistics in lexical order.
func (c *Cache) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.funcs))
	for n := range c.funcs {
		names = append(names, n)
	}
	c.mu.Unlock()
	sort.Strings(names)
	return names
}

// Get returns the cached value of name, recomputing it when it is missing or
// older than the TTL.  A failed recompute is not cached.
func (c *Cache) Get(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	fn, ok := c.funcs[name]
	if !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownStat, name)
	}
	e := c.entries[name]
	if e != nil {
		if c.now().Sub(e.computedAt) < c.ttl || e.refreshing {
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		e.refreshing = true
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		return fn(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if cur := c.entries[name]; cur != nil {
			cur.refreshing = false
		}
		return 0, err
	}
	n := v.(int64)
	c.entries[name] = &entry{value: n, computedAt: c.now()}
	return n, nil
}

// All returns every registered statistic.  The first failure aborts.
func (c *Cache) All(ctx context.Context) (map[string]int64, error) {
	names := c.Names()
	out := make(map[string]int64, len(names))
	for _, n := range names {
		v, err := c.Get(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", n, err)
		}
		out[n] = v
	}
	return out, nil
}
