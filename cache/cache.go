// Package cache remembers which feed items have already been printed.
package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrExists is returned by Add for an id that is already cached.
	ErrExists = errors.New("item already cached")
	// ErrMalformed is returned by a Store whose persisted data cannot be
	// decoded.
	ErrMalformed = errors.New("malformed cache data")
)

// Item is a printed feed item. Items are immutable once cached.
type Item struct {
	ID                string    `json:"id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorHandle      string    `json:"author_handle"`
	CreatedAt         time.Time `json:"created_at"`
	Body              string    `json:"body"`
	// Unresolved marks an item given up on after repeated author lookup
	// failures. It was never printed.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Store persists the full list of cached items.
type Store interface {
	// Load returns the persisted items. Missing data is not an error.
	Load(ctx context.Context) ([]Item, error)
	// Save replaces the persisted items.
	Save(ctx context.Context, items []Item) error
}

// Cache maps item ids to items. It only grows, and every insertion is
// written through to the store.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]Item
	order  []string
	store  Store
	logger zerolog.Logger
}

// Open loads the cache from store. Malformed data is logged and treated as
// an empty cache.
func Open(ctx context.Context, store Store, logger zerolog.Logger) (*Cache, error) {
	c := &Cache{
		items:  make(map[string]Item),
		store:  store,
		logger: logger.With().Str("component", "cache").Logger(),
	}

	items, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrMalformed) {
			return nil, err
		}
		c.logger.Warn().Err(err).Msg("ignoring unreadable cache, starting empty")
		items = nil
	}

	for _, it := range items {
		if _, ok := c.items[it.ID]; ok {
			continue
		}
		c.items[it.ID] = it
		c.order = append(c.order, it.ID)
	}

	c.logger.Info().Int("items", len(c.order)).Msg("cache loaded")
	return c, nil
}

// Has reports whether id is cached.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[id]
	return ok
}

// Get returns the cached item for id.
func (c *Cache) Get(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	return it, ok
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Items returns the cached items in insertion order.
func (c *Cache) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Cache) snapshot() []Item {
	items := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id])
	}
	return items
}

// Add inserts it and persists the whole cache. If persisting fails the item
// stays cached in memory and the error is returned; the next successful
// Add writes it out.
func (c *Cache) Add(ctx context.Context, it Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[it.ID]; ok {
		return ErrExists
	}
	c.items[it.ID] = it
	c.order = append(c.order, it.ID)

	return c.store.Save(ctx, c.snapshot())
}

// Close closes the underlying store if it holds resources.
func (c *Cache) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
