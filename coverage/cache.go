package coverage

import (
	"context"
	"fmt"
	"sync"

	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// Lookup results reported to a LookupRecorder.
const (
	LookupExact = "exact"
	LookupClone = "clone"
	LookupOpen  = "open"
)

// LookupRecorder receives one call per cache lookup.
type LookupRecorder interface {
	RecordLookup(result string)
}

// Map is an immutable set of coverage handles produced by one activation.
type Map struct {
	entries map[SeriesKey]Coverage
	// first handle registered for each series and operation
	sources map[SeriesKey]Coverage
}

func newMap() *Map {
	return &Map{
		entries: make(map[SeriesKey]Coverage),
		sources: make(map[SeriesKey]Coverage),
	}
}

// Len is the number of registered keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the handle registered under exactly k.
func (m *Map) Get(k SeriesKey) (Coverage, bool) {
	if m == nil {
		return nil, false
	}
	c, ok := m.entries[k]
	return c, ok
}

// Find returns a handle whose key matches k with wildcard rules.
func (m *Map) Find(k SeriesKey) (Coverage, bool) {
	if m == nil {
		return nil, false
	}
	if c, ok := m.entries[k]; ok {
		return c, true
	}
	c, ok := m.sources[k.Wildcard()]
	return c, ok
}

// Keys returns the registered keys in no particular order.
func (m *Map) Keys() []SeriesKey {
	if m == nil {
		return nil
	}
	out := make([]SeriesKey, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out
}

func (m *Map) put(k SeriesKey, c Coverage) {
	m.entries[k] = c
	if _, ok := m.sources[k.Wildcard()]; !ok {
		m.sources[k.Wildcard()] = c
	}
}

// Cache hands out coverage handles for (series, operation, offset) keys and
// avoids opening the same series twice. Each activation builds a new Map in
// a Generation; handles from the previous activation are reused through
// clones and never closed, since in-flight evaluations may still read them.
type Cache struct {
	mu       sync.Mutex
	provider Provider
	previous *Map

	log      logging.Logger
	recorder LookupRecorder
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets the logger used by the cache.
func WithCacheLogger(l logging.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLookupRecorder reports every lookup outcome to r.
func WithLookupRecorder(r LookupRecorder) CacheOption {
	return func(c *Cache) {
		c.recorder = r
	}
}

// NewCache returns an empty cache backed by provider.
func NewCache(provider Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		provider: provider,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation collects the handles needed by one activation.
type Generation struct {
	cache    *Cache
	current  *Map
	previous *Map
	opened   int
}

// Rebuild runs build against a fresh generation. When build succeeds the new
// map replaces the previous one and is returned. Rebuilds are serialized.
func (c *Cache) Rebuild(ctx context.Context, build func(*Generation) error) (*Map, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := &Generation{cache: c, current: newMap(), previous: c.previous}
	if err := build(g); err != nil {
		return nil, err
	}
	c.log.Debug(ctx, "coverage map rebuilt",
		logging.Int("keys", g.current.Len()),
		logging.Int("opened", g.opened),
		logging.Int("previous_keys", c.previous.Len()),
	)
	c.previous = g.current
	return g.current, nil
}

// Previous returns the map committed by the last successful rebuild.
func (c *Cache) Previous() *Map {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previous
}

// Opened is the number of provider calls made by this generation so far.
func (g *Generation) Opened() int { return g.opened }

// GetOrCreate returns the handle for (series, op, offset). Lookup order is
// the exact key in the current generation, then a wildcard match in the
// current generation, then a wildcard match in the previous map, then the
// provider. Wildcard matches are cloned so that each offset keeps its own
// read state.
func (g *Generation) GetOrCreate(ctx context.Context, series *model.Series, op *model.Operation, offset TimeOffset) (Coverage, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", ErrUnknownSeries)
	}
	key := NewSeriesKey(series, op, offset)

	if c, ok := g.current.Get(key); ok {
		g.record(LookupExact)
		return c, nil
	}
	if c, ok := g.current.Find(key); ok {
		return g.register(key, clone(c), LookupClone), nil
	}
	if c, ok := g.previous.Find(key); ok {
		return g.register(key, clone(c), LookupClone), nil
	}

	c, err := g.cache.provider.Open(ctx, series, op)
	if err != nil {
		return nil, fmt.Errorf("open coverage %s: %w", key, err)
	}
	g.opened++
	return g.register(key, c, LookupOpen), nil
}

func (g *Generation) register(key SeriesKey, c Coverage, result string) Coverage {
	g.current.put(key, c)
	g.record(result)
	return c
}

func (g *Generation) record(result string) {
	if g.cache.recorder != nil {
		g.cache.recorder.RecordLookup(result)
	}
}

// clone returns a fresh handle when c supports it, c itself otherwise.
func clone(c Coverage) Coverage {
	if cl, ok := c.(Cloneable); ok {
		return cl.Clone()
	}
	return c
}
