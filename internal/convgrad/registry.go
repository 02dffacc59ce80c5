// Package convgrad caches compiled Conv2D backward-data plans and runs them
// against caller buffers.
//
// A Registry maps shape keys to plans. The first request for a key compiles
// the plan; later requests, from any goroutine, get the same instance.
// Plans are never evicted, so a registry's lifetime should match the
// session or runtime that owns it.
package convgrad

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/tensor"
	"golang.org/x/sync/singleflight"
)

// Stats counts registry activity.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Builds   uint64
	Failures uint64
}

// Registry owns the plans for one element type on one engine. It is safe
// for concurrent use.
type Registry[T tensor.Float] struct {
	engine *engine.Engine

	mu    sync.RWMutex
	plans map[string]*Primitive[T]
	group singleflight.Group

	hits     atomic.Uint64
	misses   atomic.Uint64
	builds   atomic.Uint64
	failures atomic.Uint64
}

// NewRegistry creates an empty registry on eng.
func NewRegistry[T tensor.Float](eng *engine.Engine) *Registry[T] {
	return &Registry[T]{
		engine: eng,
		plans:  make(map[string]*Primitive[T]),
	}
}

// Engine returns the engine plans are compiled for.
func (r *Registry[T]) Engine() *engine.Engine {
	return r.engine
}

// GetOrCreate returns the plan for p, compiling it on first use. Concurrent
// first requests for one key share a single build. A failed build is
// reported to every waiter and not remembered; the next request retries.
func (r *Registry[T]) GetOrCreate(p Params) (*Primitive[T], error) {
	key := p.Key()
	if prim := r.lookup(key); prim != nil {
		r.hits.Add(1)
		return prim, nil
	}
	r.misses.Add(1)

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Another caller may have registered the plan after our lookup.
		if prim := r.lookup(key); prim != nil {
			return prim, nil
		}
		r.builds.Add(1)
		prim, err := NewPrimitive[T](r.engine, p)
		if err != nil {
			r.failures.Add(1)
			slog.Warn("conv2d backward input plan build failed", "key", key, "error", err)
			return nil, err
		}

		r.mu.Lock()
		r.plans[key] = prim
		r.mu.Unlock()
		return prim, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Primitive[T]), nil
}

func (r *Registry[T]) lookup(key string) *Primitive[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plans[key]
}

// Len returns the number of cached plans.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans)
}

// Keys returns the cached keys in sorted order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.plans))
	for k := range r.plans {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the registry counters.
func (r *Registry[T]) Stats() Stats {
	return Stats{
		Hits:     r.hits.Load(),
		Misses:   r.misses.Load(),
		Builds:   r.builds.Load(),
		Failures: r.failures.Load(),
	}
}
