package pubfront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfront/content"
)

const rebuildTimeout = 30 * time.Second

// PageStore persists rendered pages by key.
type PageStore interface {
	// Get returns the page for key, or ok=false when absent.
	Get(ctx context.Context, key string) (p *Page, ok bool, err error)
	Set(ctx context.Context, key string, p *Page) error
	Delete(ctx context.Context, key string) error
}

// BuildFunc fetches and renders the page for key. It returns an error
// wrapping content.ErrNotFound when the page does not exist.
type BuildFunc func(ctx context.Context, key string) (*Page, error)

// PageCache serves rendered pages with stale-while-revalidate reuse: a
// page younger than the window is returned as stored; an older one is
// returned as stored while a single background rebuild replaces it. Missing
// pages are built while the caller waits, once per key however many
// callers arrive together.
type PageCache struct {
	store   PageStore
	build   BuildFunc
	window  time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	metrics *Metrics

	group singleflight.Group

	mu         sync.Mutex
	refreshing map[string]bool

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CacheOption configures a PageCache.
type CacheOption func(*PageCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *PageCache) { c.now = now }
}

// WithCacheLogger sets the logger for rebuild failures.
func WithCacheLogger(l zerolog.Logger) CacheOption {
	return func(c *PageCache) { c.logger = l }
}

// WithCacheMetrics records lookups and rebuilds on m.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *PageCache) { c.metrics = m }
}

// NewPageCache returns a PageCache over store that builds pages with build.
func NewPageCache(store PageStore, build BuildFunc, window time.Duration, opts ...CacheOption) *PageCache {
	bg, cancel := context.WithCancel(context.Background())
	c := &PageCache{
		store:      store,
		build:      build,
		window:     window,
		now:        time.Now,
		logger:     zerolog.Nop(),
		refreshing: make(map[string]bool),
		bg:         bg,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the page for key. Not-found results are returned as errors
// and never stored.
func (c *PageCache) Get(ctx context.Context, key string) (*Page, error) {
	p, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("page store read failed, rebuilding")
		ok = false
	}
	if ok {
		if c.now().Sub(p.GeneratedAt) < c.window {
			c.count("hit")
			return p, nil
		}
		c.count("stale")
		c.revalidate(key)
		return p, nil
	}

	c.count("miss")
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.rebuild(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// Prerender builds and stores every key, stopping at the first failure.
func (c *PageCache) Prerender(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := c.rebuild(ctx, key); err != nil {
			return fmt.Errorf("pubfront: prerender %s: %w", key, err)
		}
	}
	return nil
}

// Invalidate drops the stored page for key.
func (c *PageCache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Wait blocks until running background rebuilds finish.
func (c *PageCache) Wait() {
	c.wg.Wait()
}

// Close cancels background rebuilds and waits for them to return.
func (c *PageCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *PageCache) rebuild(ctx context.Context, key string) (*Page, error) {
	start := time.Now()
	p, err := c.build(ctx, key)
	if c.metrics != nil {
		c.metrics.RebuildLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	p.GeneratedAt = c.now()
	if err := c.store.Set(ctx, key, p); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("page store write failed")
	}
	return p, nil
}

// revalidate starts a background rebuild of key unless one is running.
func (c *PageCache) revalidate(key string) {
	c.mu.Lock()
	if c.refreshing[key] {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(c.bg, rebuildTimeout)
		defer cancel()
		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.rebuild(ctx, key)
		})
		switch {
		case err == nil:
		case errors.Is(err, content.ErrNotFound):
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("drop removed page")
			}
		default:
			if c.metrics != nil {
				c.metrics.RebuildFailures.Inc()
			}
			c.logger.Error().Err(err).Str("key", key).Msg("page rebuild failed, serving stale copy")
		}
	}()
}

func (c *PageCache) count(result string) {
	if c.metrics != nil {
		c.metrics.PageCache.WithLabelValues(result).Inc()
	}
}

// MemoryPageStore keeps pages in process memory.
type MemoryPageStore struct {
	mu    sync.RWMutex
	pages map[string]*Page
}

// NewMemoryPageStore returns an empty MemoryPageStore.
func NewMemoryPageStore() *MemoryPageStore {
	return &MemoryPageStore{pages: make(map[string]*Page)}
}

func (s *MemoryPageStore) Get(_ context.Context, key string) (*Page, bool, error) {
	s.mu.RLock()
	p, ok := s.pages[key]
	s.mu.RUnlock()
	return p, ok, nil
}

func (s *MemoryPageStore) Set(_ context.Context, key string, p *Page) error {
	s.mu.Lock()
	s.pages[key] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryPageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.pages, key)
	s.mu.Unlock()
	return nil
}
