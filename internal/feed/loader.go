package feed

import (
	"context"
	"fmt"
	"sync"

	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/post"
)

// Loader keeps only the result of the most recently initiated load. A reload
// racing with its predecessor discards the stale in-flight result instead of
// letting it overwrite newer data.
type Loader[T any] struct {
	mu  sync.Mutex
	gen uint64
}

// Load runs fetch and reports whether its result is still current. A false
// second return means a newer load was initiated while fetch was in flight and
// the caller must drop the result.
func (l *Loader[T]) Load(ctx context.Context, fetch func(context.Context) (T, error)) (T, bool, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	result, err := fetch(ctx)

	l.mu.Lock()
	current := gen == l.gen
	l.mu.Unlock()

	if !current {
		var zero T
		return zero, false, nil
	}
	return result, true, err
}

const maxTrackedQueries = 256

// candidateLoader guards candidate fetches per query so a stale in-flight
// fetch can never be served over a newer one. A superseded caller receives the
// newest snapshot recorded for its query instead of its own result.
type candidateLoader struct {
	mu      sync.Mutex
	loaders map[string]*Loader[[]post.Post]
	latest  map[string][]post.Post
}

func newCandidateLoader() *candidateLoader {
	return &candidateLoader{
		loaders: map[string]*Loader[[]post.Post]{},
		latest:  map[string][]post.Post{},
	}
}

func (cl *candidateLoader) load(ctx context.Context, key string, fetch func(context.Context) ([]post.Post, error)) ([]post.Post, error) {
	cl.mu.Lock()
	if len(cl.loaders) > maxTrackedQueries {
		cl.loaders = map[string]*Loader[[]post.Post]{}
		cl.latest = map[string][]post.Post{}
	}
	loader, ok := cl.loaders[key]
	if !ok {
		loader = &Loader[[]post.Post]{}
		cl.loaders[key] = loader
	}
	cl.mu.Unlock()

	candidates, fresh, err := loader.Load(ctx, fetch)
	if err != nil {
		return nil, err
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if fresh {
		cl.latest[key] = candidates
		return candidates, nil
	}
	return cl.latest[key], nil
}

func candidateKey(viewer *geo.Coordinate, radius geo.Radius, limit int) string {
	km, bounded := radius.Km()
	if viewer == nil {
		return fmt.Sprintf("broad|%t:%.3f|%d", bounded, km, limit)
	}
	return fmt.Sprintf("%.4f,%.4f|%t:%.3f|%d", viewer.Lat, viewer.Lng, bounded, km, limit)
}
