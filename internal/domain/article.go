package domain

import "time"

// RawItem is an unprocessed item as extracted by a collector, pre-dedup.
type RawItem struct {
	Title     string
	Content   string
	Link      string
	Author    string
	ImageURL  string
	Published *time.Time // nil when the source provided no parseable date
}

// Article is the canonical persisted news item, keyed by its link.
type Article struct {
	ID          string
	Title       string
	Content     string
	Link        string
	SourceName  string
	SourceURL   string
	PublishedAt *time.Time
	RetrievedAt time.Time
	Category    string
	ImageURL    string
	IsRead      bool
	Summary     string
}

// RefreshResult summarizes one completed ingestion cycle.
type RefreshResult struct {
	New     int
	Updated int
	Errors  []SourceError
}

// SourceError reports one source whose fetch failed during a cycle.
type SourceError struct {
	SourceID   string
	SourceName string
	Err        error
}

// Progress describes one step of an in-flight refresh cycle. Processed only
// ever grows; source completion order is not guaranteed.
type Progress struct {
	Processed int
	Total     int
	Source    string
}
