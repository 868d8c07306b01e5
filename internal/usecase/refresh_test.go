package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NewsRadar/internal/cache"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/source"
)

// memoryRepository is an in-memory stand-in for the SQL repository, applying
// the same link-keyed upsert semantics.
type memoryRepository struct {
	mu       sync.Mutex
	byLink   map[string]domain.Article
	upserts  int
	failNext error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byLink: map[string]domain.Article{}}
}

func (m *memoryRepository) UpsertBatch(_ context.Context, articles []domain.Article) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}

	m.upserts++
	ids := make([]string, 0, len(articles))
	for _, art := range articles {
		if existing, ok := m.byLink[art.Link]; ok {
			art.ID = existing.ID
		}
		m.byLink[art.Link] = art
		ids = append(ids, art.ID)
	}
	return ids, nil
}

func (m *memoryRepository) GetByLink(_ context.Context, link string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if art, ok := m.byLink[link]; ok {
		return &art, nil
	}
	return nil, nil
}

func (m *memoryRepository) GetByLinks(_ context.Context, links []string) (map[string]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]domain.Article{}
	for _, link := range links {
		if art, ok := m.byLink[link]; ok {
			out[link] = art
		}
	}
	return out, nil
}

func (m *memoryRepository) Query(context.Context, ports.ArticleQuery) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Article
	for _, art := range m.byLink {
		out = append(out, art)
	}
	return out, nil
}

func (m *memoryRepository) SetReadStatus(_ context.Context, link string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	art, ok := m.byLink[link]
	if !ok {
		return nil
	}
	art.IsRead = read
	m.byLink[link] = art
	return nil
}

// stubCollector serves canned items or an error per source id.
type stubCollector struct {
	mu    sync.Mutex
	items map[string][]domain.RawItem
	errs  map[string]error
	block chan struct{} // when set, Fetch waits until closed
}

func (s *stubCollector) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[src.ID]; err != nil {
		return nil, err
	}
	return s.items[src.ID], nil
}

type recordingListener struct {
	mu        sync.Mutex
	started   []int
	progress  []domain.Progress
	completed []domain.RefreshResult
	errs      []error
}

func (r *recordingListener) RefreshStarted(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, total)
}

func (r *recordingListener) RefreshProgress(p domain.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingListener) RefreshCompleted(result domain.RefreshResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
	r.errs = append(r.errs, err)
}

func testSource(id string) domain.Source {
	return domain.Source{
		ID:      id,
		Name:    id,
		URL:     "https://" + id + ".example/feed.xml",
		Type:    domain.SourceTypeFeed,
		Enabled: true,
	}
}

func rawItem(link, title string) domain.RawItem {
	return domain.RawItem{Title: title, Content: "body of " + title, Link: link}
}

func newTestCoordinator(t *testing.T, collector ports.Collector, repo ports.ArticleRepository, listeners []ports.RefreshListener, srcs ...domain.Source) (*Coordinator, *source.Registry) {
	t.Helper()

	registry, err := source.NewRegistry(srcs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	c := NewCoordinator(CoordinatorDeps{
		Registry:   registry,
		Collectors: map[domain.SourceType]ports.Collector{domain.SourceTypeFeed: collector},
		Repository: repo,
		Cache:      cache.New(100),
		Listeners:  listeners,
	})
	return c, registry
}

func TestRefreshIngestsNewArticles(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	col := &stubCollector{items: map[string][]domain.RawItem{
		"wire": {rawItem("https://wire.example/1", "One"), rawItem("https://wire.example/2", "Two")},
	}}
	listener := &recordingListener{}
	c, _ := newTestCoordinator(t, col, repo, []ports.RefreshListener{listener}, testSource("wire"))

	result, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.New != 2 || result.Updated != 0 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, _ := repo.GetByLink(context.Background(), "https://wire.example/1")
	if stored == nil || stored.ID == "" || stored.SourceName != "wire" {
		t.Fatalf("article not persisted properly: %+v", stored)
	}

	if len(listener.started) != 1 || listener.started[0] != 1 {
		t.Fatalf("expected one started event for one source, got %v", listener.started)
	}
	if len(listener.completed) != 1 {
		t.Fatalf("expected one completed event, got %d", len(listener.completed))
	}
}

func TestRefreshProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	items := map[string][]domain.RawItem{}
	var srcs []domain.Source
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		srcs = append(srcs, testSource(id))
		items[id] = []domain.RawItem{rawItem("https://"+id+".example/1", "Item "+id)}
	}

	listener := &recordingListener{}
	c, _ := newTestCoordinator(t, &stubCollector{items: items}, newMemoryRepository(), []ports.RefreshListener{listener}, srcs...)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if len(listener.progress) != len(srcs) {
		t.Fatalf("expected %d progress events, got %d", len(srcs), len(listener.progress))
	}
	for i, p := range listener.progress {
		if p.Processed != i+1 {
			t.Fatalf("progress count must be delivered in order: event %d carries processed=%d", i, p.Processed)
		}
		if p.Total != len(srcs) {
			t.Fatalf("unexpected total %d", p.Total)
		}
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	col := &stubCollector{items: map[string][]domain.RawItem{
		"wire": {rawItem("https://wire.example/1", "One")},
	}}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("wire"))

	first, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	second, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if first.New != 1 {
		t.Fatalf("first cycle should insert, got %+v", first)
	}
	if second.New != 0 || second.Updated != 1 {
		t.Fatalf("second cycle must count updates, not inserts: %+v", second)
	}

	stored, _ := repo.GetByLink(context.Background(), "https://wire.example/1")
	if len(repo.byLink) != 1 {
		t.Fatalf("expected exactly one stored article, got %d", len(repo.byLink))
	}
	if stored.ID == "" {
		t.Fatalf("article lost its id across cycles")
	}
}

func TestRefreshSourceIsolation(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	col := &stubCollector{
		items: map[string][]domain.RawItem{
			"good": {rawItem("https://good.example/1", "One")},
		},
		errs: map[string]error{
			"bad": &domain.FetchError{Source: "bad", Kind: domain.FetchKindNetwork, Err: errors.New("timeout")},
		},
	}
	c, registry := newTestCoordinator(t, col, repo, nil, testSource("good"), testSource("bad"))

	result, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("a failing source must not fail the cycle: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("good source items must persist, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].SourceID != "bad" {
		t.Fatalf("expected one source error for bad, got %+v", result.Errors)
	}

	bad, _ := registry.Get("bad")
	if bad.ConsecutiveErrors != 1 || bad.LastStatus != domain.SourceStatusError {
		t.Fatalf("failure must be recorded on the source, got %+v", bad)
	}
	good, _ := registry.Get("good")
	if good.ConsecutiveErrors != 0 || good.LastStatus != domain.SourceStatusOK {
		t.Fatalf("success must be recorded on the source, got %+v", good)
	}
}

func TestRefreshRejectsConcurrentCycle(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	block := make(chan struct{})
	col := &stubCollector{
		items: map[string][]domain.RawItem{"wire": {rawItem("https://wire.example/1", "One")}},
		block: block,
	}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("wire"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()

	// Wait until the first cycle holds the busy flag.
	for !c.Busy() {
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Refresh(context.Background()); !errors.Is(err, domain.ErrRefreshBusy) {
		t.Fatalf("expected ErrRefreshBusy, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// The busy flag clears and a new cycle is accepted.
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("post-cycle refresh rejected: %v", err)
	}
}

func TestRefreshBusyClearsAfterFailure(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.failNext = &domain.StorageError{Op: "upsert", Err: errors.New("disk full")}
	col := &stubCollector{items: map[string][]domain.RawItem{
		"wire": {rawItem("https://wire.example/1", "One")},
	}}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("wire"))

	if _, err := c.Refresh(context.Background()); err == nil {
		t.Fatalf("expected storage failure to surface")
	}
	if c.Busy() {
		t.Fatalf("busy flag must clear after a failed cycle")
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("coordinator stuck after failure: %v", err)
	}
}

func TestRefreshDedupesWithinBatch(t *testing.T) {
	t.Parallel()

	full := rawItem("https://wire.example/1", "Full")
	sparse := domain.RawItem{Title: "Sparse", Link: "https://wire.example/1"}

	repo := newMemoryRepository()
	col := &stubCollector{items: map[string][]domain.RawItem{
		"a": {sparse},
		"b": {full},
	}}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("a"), testSource("b"))

	result, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("duplicate links across sources must collapse, got %+v", result)
	}

	stored, _ := repo.GetByLink(context.Background(), "https://wire.example/1")
	if stored.Title != "Full" {
		t.Fatalf("the item with content must win the batch, got %q", stored.Title)
	}
}

func TestRefreshMergePreservesPublishedAt(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, time.August, 24, 9, 0, 0, 0, time.UTC)
	item := rawItem("https://wire.example/1", "One")
	item.Published = &published

	repo := newMemoryRepository()
	col := &stubCollector{items: map[string][]domain.RawItem{"wire": {item}}}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("wire"))

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// The source re-serves the item without a date or body.
	col.mu.Lock()
	col.items["wire"] = []domain.RawItem{{Title: "One updated", Link: "https://wire.example/1"}}
	col.mu.Unlock()

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	stored, _ := repo.GetByLink(context.Background(), "https://wire.example/1")
	if stored.Title != "One updated" {
		t.Fatalf("title must refresh, got %q", stored.Title)
	}
	if stored.Content != "body of One" {
		t.Fatalf("empty content must not clobber, got %q", stored.Content)
	}
	if stored.PublishedAt == nil || !stored.PublishedAt.Equal(published) {
		t.Fatalf("published_at must not regress, got %v", stored.PublishedAt)
	}
}

func TestRefreshNormalizesLinks(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	col := &stubCollector{items: map[string][]domain.RawItem{
		"a": {rawItem("HTTPS://Wire.example/articles/1/", "One")},
		"b": {rawItem("https://wire.example/articles/1#section", "One again")},
	}}
	c, _ := newTestCoordinator(t, col, repo, nil, testSource("a"), testSource("b"))

	result, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("link variants must normalize to one article, got %+v", result)
	}
	if _, ok := repo.byLink["https://wire.example/articles/1"]; !ok {
		t.Fatalf("unexpected stored links: %v", repo.byLink)
	}
}

func TestNormalizeLink(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"HTTPS://Example.COM/Path/", "https://example.com/Path"},
		{"https://example.com/a#frag", "https://example.com/a"},
		{"https://example.com/a?id=7", "https://example.com/a?id=7"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"not a url", "not a url"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeLink(tc.in); got != tc.want {
			t.Fatalf("normalizeLink(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRefreshUnsupportedSourceType(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	registry, err := source.NewRegistry([]domain.Source{{
		ID: "page", Name: "page", URL: "https://page.example",
		Type: domain.SourceTypeScrape, Enabled: true,
		Scrape: &domain.ScrapeConfig{Selectors: []domain.SelectorSet{{Item: "li", Title: "h2"}}},
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	c := NewCoordinator(CoordinatorDeps{
		Registry:   registry,
		Collectors: map[domain.SourceType]ports.Collector{}, // no scrape collector wired
		Repository: repo,
		Cache:      cache.New(10),
	})

	result, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected a per-source error, got %+v", result)
	}
}
