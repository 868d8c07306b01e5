package cache

import (
	"sync"

	"NewsRadar/internal/domain"
)

// RefreshCache is a link-indexed view of recently seen articles, used to
// answer "already known?" without a storage round trip per item. It is
// write-through: the coordinator updates it only after a batch commits, so
// its staleness window is exactly one uncommitted cycle.
type RefreshCache struct {
	mu       sync.RWMutex
	capacity int
	index    map[string]int
	items    []domain.Article // most recent first
}

// New builds a cache bounded to capacity articles; capacity <= 0 means 500.
func New(capacity int) *RefreshCache {
	if capacity <= 0 {
		capacity = 500
	}
	return &RefreshCache{
		capacity: capacity,
		index:    map[string]int{},
	}
}

// Get returns the cached article for a link.
func (c *RefreshCache) Get(link string) (domain.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[link]
	if !ok {
		return domain.Article{}, false
	}
	return c.items[i], true
}

// Known reports whether a link has been seen.
func (c *RefreshCache) Known(link string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.index[link]
	return ok
}

// Put replaces-or-prepends articles, preserving overall recency ordering:
// an already-known link keeps its position with refreshed data, a new link
// goes to the front. The oldest entries fall off past capacity.
func (c *RefreshCache) Put(articles ...domain.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacements first, while the index still matches item positions;
	// prepending as we go would shift slots under the index.
	var fresh []domain.Article
	pending := map[string]int{}
	for _, art := range articles {
		if art.Link == "" {
			continue
		}
		if i, ok := c.index[art.Link]; ok {
			c.items[i] = art
			continue
		}
		if j, ok := pending[art.Link]; ok {
			fresh[j] = art
			continue
		}
		pending[art.Link] = len(fresh)
		fresh = append(fresh, art)
	}

	for _, art := range fresh {
		c.items = append([]domain.Article{art}, c.items...)
	}

	if len(c.items) > c.capacity {
		c.items = c.items[:c.capacity]
	}
	c.reindex()
}

// Snapshot returns a copy of the cached articles, most recent first.
func (c *RefreshCache) Snapshot() []domain.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Article, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of cached articles.
func (c *RefreshCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

func (c *RefreshCache) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, art := range c.items {
		c.index[art.Link] = i
	}
}
