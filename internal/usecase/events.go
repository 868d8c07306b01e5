package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// EventService produces the event view for analysis collaborators: it reads a
// recent-article window from the store and runs the clusterer over it. The
// clusterer is read-only over articles, so a rebuild may overlap an ingestion
// cycle on a snapshot read; the events may then trail the newest batch by one
// cycle, which is accepted.
type EventService struct {
	repository ports.ArticleRepository
	clusterer  ports.Clusterer
	window     int
	maxAge     time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	events []domain.Event
	asOf   time.Time
}

// NewEventService bounds the clustering window to the most recent articles;
// window <= 0 means 200, maxAge <= 0 means 72h.
func NewEventService(repo ports.ArticleRepository, clusterer ports.Clusterer, window int, maxAge time.Duration, logger *slog.Logger) *EventService {
	if window <= 0 {
		window = 200
	}
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &EventService{
		repository: repo,
		clusterer:  clusterer,
		window:     window,
		maxAge:     maxAge,
		logger:     logger,
	}
}

// Rebuild recomputes the event set from the current article window. The
// cached result is replaced only on success.
func (s *EventService) Rebuild(ctx context.Context) ([]domain.Event, error) {
	articles, err := s.repository.Query(ctx, ports.ArticleQuery{
		Since: time.Now().UTC().Add(-s.maxAge),
		Limit: s.window,
	})
	if err != nil {
		return nil, fmt.Errorf("load article window: %w", err)
	}

	events, err := s.clusterer.Cluster(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("cluster articles: %w", err)
	}

	s.mu.Lock()
	s.events = events
	s.asOf = time.Now().UTC()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("event view rebuilt", "articles", len(articles), "events", len(events))
	}
	return events, nil
}

// Events returns the last computed event set and its build time. The cache is
// a convenience view, never the source of truth; Rebuild recomputes it from
// the article window.
func (s *EventService) Events() ([]domain.Event, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out, s.asOf
}
