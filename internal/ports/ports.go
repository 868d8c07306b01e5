package ports

import (
	"context"
	"time"

	"NewsRadar/internal/domain"
)

// Collector pulls raw items from one source. Implementations are pure
// fetch logic; they hold no cross-cycle state.
type Collector interface {
	Fetch(ctx context.Context, source domain.Source) ([]domain.RawItem, error)
}

// ArticleQuery filters and pages persisted articles.
type ArticleQuery struct {
	Category   string
	UnreadOnly bool
	Since      time.Time
	Limit      int
	Offset     int
}

// ArticleRepository persists articles and owns the link-uniqueness invariant.
// No other component may write articles.
type ArticleRepository interface {
	UpsertBatch(ctx context.Context, articles []domain.Article) ([]string, error)
	GetByLink(ctx context.Context, link string) (*domain.Article, error)
	GetByLinks(ctx context.Context, links []string) (map[string]domain.Article, error)
	Query(ctx context.Context, q ArticleQuery) ([]domain.Article, error)
	SetReadStatus(ctx context.Context, link string, read bool) error
}

// PageFetcher retrieves rendered HTML for scrape sources. Injected so
// collector logic is testable without a real browser.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// RefreshListener receives cycle lifecycle events. Implementations must not
// block; the coordinator calls them inline.
type RefreshListener interface {
	RefreshStarted(total int)
	RefreshProgress(p domain.Progress)
	RefreshCompleted(result domain.RefreshResult, err error)
}

// Clusterer groups near-duplicate articles into events.
type Clusterer interface {
	Cluster(ctx context.Context, articles []domain.Article) ([]domain.Event, error)
}

// Scheduler controls when refresh cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
