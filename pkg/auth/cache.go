package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/observability"
)

// Cache holds one credential per key pair and refreshes through the
// caller-supplied TokenSource when the cached credential goes stale.
// Concurrent refreshes for the same key pair are coalesced into a single
// network call. All methods are safe for concurrent use.
type Cache struct {
	margin time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	creds map[string]*Credential
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithSafetyMargin sets how long before actual expiry a credential is
// treated as stale.
func WithSafetyMargin(d time.Duration) CacheOption {
	return func(c *Cache) { c.margin = d }
}

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty credential cache with a 60s safety margin.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		margin: 60 * time.Second,
		now:    time.Now,
		creds:  make(map[string]*Credential),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns a still-valid cached credential for the source's key
// pair, or refreshes one. Failed refreshes are not cached.
//
// A refresh, once started, always runs to completion and updates the cache
// even if the caller that triggered it cancels; the canceling caller gets
// a CanceledError (or TimeoutError) without aborting the refresh.
func (c *Cache) Acquire(ctx context.Context, src TokenSource) (*Credential, error) {
	key := src.KeyPairID()

	c.mu.RLock()
	cred := c.creds[key]
	c.mu.RUnlock()
	if cred.Valid(c.now(), c.margin) {
		return cred, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A concurrent flight may have refreshed while we waited for the
		// singleflight slot.
		c.mu.RLock()
		cur := c.creds[key]
		c.mu.RUnlock()
		if cur.Valid(c.now(), c.margin) {
			return cur, nil
		}

		// Detach from the caller's context: the refresh must complete and
		// land in the cache for future callers regardless of who waits.
		fresh, err := src.Token(context.WithoutCancel(ctx))
		if err != nil {
			observability.CredentialRefreshesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		observability.CredentialRefreshesTotal.WithLabelValues("ok").Inc()

		c.mu.Lock()
		c.creds[key] = fresh
		c.mu.Unlock()
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, api.NewTimeoutError("credential acquire")
		}
		return nil, api.NewCanceledError("credential acquire")
	}
}

// Invalidate drops the cached credential for a key pair, forcing the next
// Acquire to refresh. Used when the service reports the token as expired.
func (c *Cache) Invalidate(keyPairID string) {
	c.mu.Lock()
	delete(c.creds, keyPairID)
	c.mu.Unlock()
}
