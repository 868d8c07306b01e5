package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsRadar/internal/cache"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/source"
)

// CoordinatorDeps wires the driven adapters into the ingestion coordinator.
type CoordinatorDeps struct {
	Registry   *source.Registry
	Collectors map[domain.SourceType]ports.Collector
	Repository ports.ArticleRepository
	Cache      *cache.RefreshCache
	Listeners  []ports.RefreshListener
	Logger     *slog.Logger

	Workers       int
	SourceTimeout time.Duration
}

// Coordinator orchestrates one refresh cycle: concurrent collection with
// bounded parallelism, two-stage deduplication, one transactional upsert, and
// a write-through cache update. Only one cycle runs at a time; a concurrent
// request is rejected with ErrRefreshBusy rather than queued, so a caller can
// always tell whether its trigger did anything.
type Coordinator struct {
	registry      *source.Registry
	collectors    map[domain.SourceType]ports.Collector
	repository    ports.ArticleRepository
	cache         *cache.RefreshCache
	listeners     []ports.RefreshListener
	logger        *slog.Logger
	workers       int
	sourceTimeout time.Duration

	mu   sync.Mutex
	busy bool
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := deps.SourceTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coordinator{
		registry:      deps.Registry,
		collectors:    deps.Collectors,
		repository:    deps.Repository,
		cache:         deps.Cache,
		listeners:     deps.Listeners,
		logger:        deps.Logger,
		workers:       workers,
		sourceTimeout: timeout,
	}
}

// Busy reports whether a cycle is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

type fetched struct {
	source domain.Source
	items  []domain.RawItem
	err    error
}

// Refresh runs one full ingestion cycle over the enabled sources. The busy
// flag clears on every exit path, success or failure, so a failed cycle never
// leaves the coordinator stuck "refreshing".
func (c *Coordinator) Refresh(ctx context.Context) (domain.RefreshResult, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return domain.RefreshResult{}, domain.ErrRefreshBusy
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	cycleID := uuid.NewString()
	sources := c.registry.Active()
	total := len(sources)

	c.debug("refresh cycle started", "cycle", cycleID, "sources", total)
	for _, l := range c.listeners {
		l.RefreshStarted(total)
	}

	results := c.collectAll(ctx, cycleID, sources)

	var (
		merged    []domain.RawItem
		rawSource = map[string]domain.Source{}
		errs      []domain.SourceError
	)
	now := time.Now().UTC()
	for _, res := range results {
		c.registry.RecordCheck(res.source.ID, res.err == nil, now)
		if res.err != nil {
			errs = append(errs, domain.SourceError{
				SourceID:   res.source.ID,
				SourceName: res.source.Label(),
				Err:        res.err,
			})
			c.warn("source fetch failed", "cycle", cycleID, "source", res.source.Label(), "error", res.err)
			continue
		}
		for _, item := range res.items {
			link := normalizeLink(item.Link)
			if link == "" {
				continue
			}
			item.Link = link
			merged = append(merged, item)
			rawSource[link] = res.source
		}
	}

	if err := ctx.Err(); err != nil {
		result := domain.RefreshResult{Errors: errs}
		c.complete(result, err)
		return result, err
	}

	batch := dedupBatch(merged)

	articles, newCount, updatedCount, err := c.resolveAgainstKnown(ctx, batch, rawSource, now)
	if err != nil {
		result := domain.RefreshResult{Errors: errs}
		c.complete(result, err)
		return result, err
	}

	if len(articles) > 0 {
		if _, err := c.repository.UpsertBatch(ctx, articles); err != nil {
			// The whole batch rolled back; nothing from this cycle persists.
			result := domain.RefreshResult{Errors: errs}
			c.complete(result, err)
			return result, err
		}
		c.cache.Put(articles...)
	}

	result := domain.RefreshResult{New: newCount, Updated: updatedCount, Errors: errs}
	c.complete(result, nil)
	c.debug("refresh cycle done", "cycle", cycleID, "new", newCount, "updated", updatedCount, "failed_sources", len(errs))
	return result, nil
}

// collectAll dispatches collectors with bounded parallelism and a hard
// per-source timeout; a hung source cannot stall the cycle past its deadline.
func (c *Coordinator) collectAll(ctx context.Context, cycleID string, sources []domain.Source) []fetched {
	var (
		mu        sync.Mutex
		results   []fetched
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			res := fetched{source: src}

			collector, ok := c.collectors[src.Type]
			if !ok {
				res.err = &domain.FetchError{Source: src.Label(), Kind: domain.FetchKindParse,
					Err: errUnsupportedType(src.Type)}
			} else if err := gctx.Err(); err != nil {
				// Cancellation checked between sources; pending ones are skipped.
				res.err = &domain.FetchError{Source: src.Label(), Kind: domain.FetchKindNetwork, Err: err}
			} else {
				fetchCtx, cancel := context.WithTimeout(gctx, c.sourceTimeout)
				res.items, res.err = collector.Fetch(fetchCtx, src)
				cancel()
			}

			mu.Lock()
			results = append(results, res)
			processed++
			p := domain.Progress{Processed: processed, Total: len(sources), Source: src.Label()}
			// Fan-out stays under the lock so subscribers see the processed
			// count in order; listeners are documented non-blocking.
			for _, l := range c.listeners {
				l.RefreshProgress(p)
			}
			mu.Unlock()

			c.debug("source processed", "cycle", cycleID, "source", src.Label(), "items", len(res.items))
			return nil
		})
	}

	_ = g.Wait() // per-source errors are carried in results, never returned
	return results
}

// resolveAgainstKnown splits the deduped batch into inserts and updates by
// consulting the refresh cache first and the store for the remainder, then
// applies the merge rules for known links.
func (c *Coordinator) resolveAgainstKnown(ctx context.Context, batch []domain.RawItem, rawSource map[string]domain.Source, now time.Time) ([]domain.Article, int, int, error) {
	var missing []string
	known := map[string]domain.Article{}
	for _, item := range batch {
		if art, ok := c.cache.Get(item.Link); ok {
			known[item.Link] = art
		} else {
			missing = append(missing, item.Link)
		}
	}
	if len(missing) > 0 {
		stored, err := c.repository.GetByLinks(ctx, missing)
		if err != nil {
			return nil, 0, 0, err
		}
		for link, art := range stored {
			known[link] = art
		}
	}

	var (
		articles     []domain.Article
		newCount     int
		updatedCount int
	)
	for _, item := range batch {
		src := rawSource[item.Link]

		if existing, ok := known[item.Link]; ok {
			articles = append(articles, mergeIntoExisting(existing, item, now))
			updatedCount++
			continue
		}

		articles = append(articles, domain.Article{
			ID:          uuid.NewString(),
			Title:       item.Title,
			Content:     item.Content,
			Link:        item.Link,
			SourceName:  src.Label(),
			SourceURL:   src.URL,
			PublishedAt: item.Published,
			RetrievedAt: now,
			Category:    src.Category,
			ImageURL:    item.ImageURL,
		})
		newCount++
	}
	return articles, newCount, updatedCount, nil
}

// mergeIntoExisting applies the additive merge rules: content and image only
// improve, published_at never regresses to null, is_read stays sticky, and
// the newer retrieved_at wins.
func mergeIntoExisting(existing domain.Article, item domain.RawItem, now time.Time) domain.Article {
	merged := existing
	merged.Title = item.Title
	if item.Content != "" {
		merged.Content = item.Content
	}
	if item.Published != nil {
		merged.PublishedAt = item.Published
	}
	if item.ImageURL != "" {
		merged.ImageURL = item.ImageURL
	}
	merged.RetrievedAt = now
	return merged
}

// dedupBatch resolves intra-batch link collisions: the item with non-empty
// content wins, ties go to the most recent publish time.
func dedupBatch(items []domain.RawItem) []domain.RawItem {
	index := map[string]int{}
	var out []domain.RawItem
	for _, item := range items {
		i, seen := index[item.Link]
		if !seen {
			index[item.Link] = len(out)
			out = append(out, item)
			continue
		}
		if preferItem(item, out[i]) {
			out[i] = item
		}
	}
	return out
}

func preferItem(candidate, current domain.RawItem) bool {
	candidateFull := candidate.Content != ""
	currentFull := current.Content != ""
	if candidateFull != currentFull {
		return candidateFull
	}
	if candidate.Published != nil && current.Published != nil {
		return candidate.Published.After(*current.Published)
	}
	return candidate.Published != nil && current.Published == nil
}

// normalizeLink canonicalizes a link for dedup: lowercased scheme and host,
// fragment stripped, trailing slash dropped. Query strings are kept; too many
// sites key articles on them.
func normalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func errUnsupportedType(t domain.SourceType) error {
	return fmt.Errorf("no collector for source type %q", t)
}

func (c *Coordinator) complete(result domain.RefreshResult, err error) {
	for _, l := range c.listeners {
		l.RefreshCompleted(result, err)
	}
}

func (c *Coordinator) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
