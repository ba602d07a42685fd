package endpoint

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/observability"
)

// OverlayFetcher retrieves the dynamic endpoint overlay from the service,
// keyed by model type then lowercase model name.
type OverlayFetcher func(ctx context.Context) (map[api.ModelType]map[string]string, error)

// Resolver maps (model type, model name) pairs to endpoint paths. The
// dynamic overlay shadows the static table; it is fetched lazily, cached
// for a freshness window, and refresh attempts are coalesced. All methods
// are safe for concurrent use.
type Resolver struct {
	static *Table
	fetch  OverlayFetcher
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	overlay   map[api.ModelType]map[string]string
	fetchedAt time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOverlay enables the dynamic overlay with the given fetcher and
// freshness window.
func WithOverlay(fetch OverlayFetcher, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.fetch = fetch
		r.ttl = ttl
	}
}

// WithResolverClock injects a clock, used by tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver over the given static table. Without
// WithOverlay only the static table and per-call overrides apply.
func NewResolver(static *Table, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		static: static,
		ttl:    10 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the endpoint path for a model. An explicit non-empty
// override wins unconditionally; then the dynamic overlay; then the static
// table. An unknown model with no override yields a ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, typ api.ModelType, name, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	key := strings.ToLower(name)

	if r.fetch != nil {
		if path, ok := r.overlayLookup(ctx, typ, key); ok {
			return path, nil
		}
	}

	if path, ok := r.static.Lookup(typ, key); ok {
		return path, nil
	}

	return "", api.NewResolutionError(typ, name)
}

// overlayLookup consults the dynamic overlay, refreshing it first when
// stale. A failed refresh leaves the previous overlay (possibly nil) in
// place; the caller falls back to the static table.
func (r *Resolver) overlayLookup(ctx context.Context, typ api.ModelType, key string) (string, bool) {
	r.mu.RLock()
	overlay := r.overlay
	stale := r.fetchedAt.IsZero() || r.now().Sub(r.fetchedAt) > r.ttl
	r.mu.RUnlock()

	if stale {
		overlay = r.refresh(ctx)
	}

	byName, ok := overlay[typ]
	if !ok {
		return "", false
	}
	path, ok := byName[key]
	return path, ok
}

// refresh fetches the overlay once, coalescing concurrent refreshes.
// Returns whatever overlay is current after the attempt.
func (r *Resolver) refresh(ctx context.Context) map[api.ModelType]map[string]string {
	r.group.Do("overlay", func() (any, error) {
		r.mu.RLock()
		stale := r.fetchedAt.IsZero() || r.now().Sub(r.fetchedAt) > r.ttl
		r.mu.RUnlock()
		if !stale {
			return nil, nil
		}

		fetched, err := r.fetch(ctx)
		r.mu.Lock()
		defer r.mu.Unlock()
		// Record the attempt time either way so a failing service is not
		// hammered on every resolve.
		r.fetchedAt = r.now()
		if err != nil {
			observability.OverlayFetchesTotal.WithLabelValues("error").Inc()
			slog.Debug("endpoint overlay fetch failed, using static table", "error", err)
			return nil, nil
		}
		observability.OverlayFetchesTotal.WithLabelValues("ok").Inc()
		lowered := make(map[api.ModelType]map[string]string, len(fetched))
		for typ, byName := range fetched {
			m := make(map[string]string, len(byName))
			for name, path := range byName {
				m[strings.ToLower(name)] = path
			}
			lowered[typ] = m
		}
		r.overlay = lowered
		return nil, nil
	})

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overlay
}
