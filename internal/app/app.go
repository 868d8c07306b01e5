package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"NewsRadar/internal/cache"
	"NewsRadar/internal/cluster"
	"NewsRadar/internal/config"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/infrastructure/browser"
	"NewsRadar/internal/infrastructure/collector"
	"NewsRadar/internal/infrastructure/scheduler"
	"NewsRadar/internal/infrastructure/storage"
	"NewsRadar/internal/logging"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/source"
	"NewsRadar/internal/usecase"
)

// Application wires configuration to the ingestion pipeline and its
// lifecycle.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sql.DB
	registry    *source.Registry
	coordinator *usecase.Coordinator
	events      *usecase.EventService
	scheduler   ports.Scheduler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := storage.NewSQLRepository(db, cfg.Database.Driver)
	if err := repo.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	sources := make([]domain.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources = append(sources, sc.Source())
	}
	registry, err := source.NewRegistry(sources)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var fetcher ports.PageFetcher
	if cfg.Browser.Headless {
		fetcher = browser.NewChromeFetcher(cfg.Browser.PageTimeout())
	} else {
		fetcher = browser.NewHTTPFetcher(nil)
	}

	feed := collector.NewFeedCollector(nil)
	collectors := map[domain.SourceType]ports.Collector{
		domain.SourceTypeFeed:     feed,
		domain.SourceTypeJSONFeed: feed,
		domain.SourceTypeScrape:   collector.NewScrapeCollector(fetcher, logging.Component(baseLogger, "collector.scrape")),
	}

	refreshCache := cache.New(cfg.Refresh.CacheSize)

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		Registry:      registry,
		Collectors:    collectors,
		Repository:    repo,
		Cache:         refreshCache,
		Listeners:     []ports.RefreshListener{newLogListener(logging.Component(baseLogger, "refresh"))},
		Logger:        logging.Component(baseLogger, "coordinator"),
		Workers:       cfg.Refresh.Workers,
		SourceTimeout: cfg.Refresh.SourceTimeout(),
	})

	tok := cluster.ForLocale(cfg.Cluster.Locale, cfg.Cluster.Stopwords)
	clusterer := cluster.New(tok,
		cluster.WithParams(cluster.Params{Epsilon: cfg.Cluster.Epsilon, MinSamples: cfg.Cluster.MinSamples}),
		cluster.WithMaxFeatures(cfg.Cluster.MaxFeatures),
		cluster.WithSummaryBounds(cfg.Cluster.SummaryLength, cfg.Cluster.SummaryLength+100),
		cluster.WithCategories(categoriesFromConfig(cfg.Cluster.Categories)),
		cluster.WithLogger(logging.Component(baseLogger, "clusterer")),
	)
	events := usecase.NewEventService(repo, clusterer, cfg.Cluster.WindowSize, 0, logging.Component(baseLogger, "events"))

	var sched ports.Scheduler
	if cfg.Scheduler.CronExpression != "" {
		sched = scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	}

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		db:          db,
		registry:    registry,
		coordinator: coordinator,
		events:      events,
		scheduler:   sched,
	}, nil
}

// Run performs one refresh cycle followed by an event-view rebuild.
func (a *Application) Run(ctx context.Context) error {
	result, err := a.coordinator.Refresh(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("refresh finished", "new", result.New, "updated", result.Updated, "failed_sources", len(result.Errors))

	if _, err := a.events.Rebuild(ctx); err != nil {
		// Clustering problems degrade to a stale event view, never a crash.
		a.logger.Warn("event rebuild failed", "error", err)
	}
	return nil
}

// Start begins scheduled refreshes when a cron expression is configured;
// without one the application is single-shot via Run.
func (a *Application) Start(ctx context.Context) error {
	if a.scheduler == nil {
		return a.Run(ctx)
	}

	if err := a.scheduler.Start(ctx, func(time.Time) {
		if err := a.Run(ctx); err != nil {
			a.logger.Error("scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return err
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func categoriesFromConfig(table map[string][]string) []cluster.Category {
	if len(table) == 0 {
		return nil
	}
	// Config maps have no reliable order; reuse the default ordering for ids
	// it covers and append the rest alphabetically via DefaultCategories
	// precedence first.
	var out []cluster.Category
	seen := map[string]struct{}{}
	for _, def := range cluster.DefaultCategories {
		if kws, ok := table[def.ID]; ok {
			out = append(out, cluster.Category{ID: def.ID, Keywords: kws})
			seen[def.ID] = struct{}{}
		}
	}
	var rest []string
	for id := range table {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, cluster.Category{ID: id, Keywords: table[id]})
	}
	return out
}

// logListener surfaces cycle lifecycle events through the logger; UI or
// automation collaborators subscribe with their own RefreshListener.
type logListener struct {
	logger *slog.Logger
}

func newLogListener(logger *slog.Logger) *logListener {
	return &logListener{logger: logger}
}

func (l *logListener) RefreshStarted(total int) {
	l.logger.Info("refresh started", "sources", total)
}

func (l *logListener) RefreshProgress(p domain.Progress) {
	l.logger.Debug("refresh progress", "processed", p.Processed, "total", p.Total, "source", p.Source)
}

func (l *logListener) RefreshCompleted(result domain.RefreshResult, err error) {
	if err != nil {
		l.logger.Error("refresh completed with failure", "error", err, "failed_sources", len(result.Errors))
		return
	}
	l.logger.Info("refresh completed", "new", result.New, "updated", result.Updated, "failed_sources", len(result.Errors))
}
