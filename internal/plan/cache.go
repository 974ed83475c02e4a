package plan

import (
	"context"
	"sync"
	"sync/atomic"

	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/events"
	"docrow.io/row-export-backend/internal/shape"
)

// cacheKey identifies one compiled plan: the opaque shape identity plus the
// schema fingerprint, so the same shape against a migrated table compiles
// fresh instead of reading stale ordinals.
type cacheKey struct {
	shapeID     string
	fingerprint uint64
}

// Cache holds compiled plans for the process lifetime. Reads are lock-free
// over a copy-on-write map; writes are serialized. There is no eviction;
// plans are small and the key space is bounded by registered shapes.
type Cache struct {
	mu    sync.Mutex
	plans atomic.Pointer[map[cacheKey]*Plan]
}

// NewCache returns an empty plan cache.
func NewCache() *Cache {
	c := &Cache{}
	m := make(map[cacheKey]*Plan)
	c.plans.Store(&m)
	return c
}

// Len reports the number of cached plans.
func (c *Cache) Len() int { return len(*c.plans.Load()) }

// GetOrCompile returns the cached plan for (shape, schema) or compiles and
// stores one. A hit or miss event is emitted either way. Two goroutines
// racing on a miss may both compile; the first stored plan wins, which is
// harmless because compilation is deterministic.
func (c *Cache) GetOrCompile(ctx context.Context, sh *shape.Shape, schema cursor.Schema, opts Options, sink events.Sink) (*Plan, error) {
	if sink == nil {
		sink = events.Nop{}
	}
	key := cacheKey{shapeID: sh.ID, fingerprint: schema.Fingerprint()}

	if p, ok := (*c.plans.Load())[key]; ok {
		sink.Emit(ctx, events.Event{
			Category:      events.PlanCacheHit,
			CorrelationID: opts.CorrelationID,
			Shape:         sh.ID,
		})
		return p, nil
	}

	sink.Emit(ctx, events.Event{
		Category:      events.PlanCacheMiss,
		CorrelationID: opts.CorrelationID,
		Shape:         sh.ID,
	})

	p, err := Compile(ctx, sh, schema, opts, sink)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	old := *c.plans.Load()
	if existing, ok := old[key]; ok {
		return existing, nil
	}
	next := make(map[cacheKey]*Plan, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = p
	c.plans.Store(&next)
	return p, nil
}
