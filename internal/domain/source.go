package domain

import (
	"fmt"
	"time"
)

// SourceType discriminates how a source is collected.
type SourceType string

const (
	SourceTypeFeed     SourceType = "feed"
	SourceTypeJSONFeed SourceType = "json_feed"
	SourceTypeScrape   SourceType = "scrape"
)

// SourceStatus is the outcome of the most recent check of a source.
type SourceStatus string

const (
	SourceStatusOK    SourceStatus = "ok"
	SourceStatusError SourceStatus = "error"
)

// SelectorSet is one candidate extraction layout for a scraped page. Sets are
// tried in order until one yields items with a non-empty title and content.
type SelectorSet struct {
	Name    string
	Item    string
	Title   string
	Content string
	Link    string
	Time    string
}

// ScrapeConfig is the typed extraction configuration for scrape sources.
type ScrapeConfig struct {
	Selectors []SelectorSet
}

// Source is a configured origin of news items (feed URL or scrape target).
// Status fields are mutated only by the ingestion coordinator after a check.
type Source struct {
	ID       string
	Name     string
	URL      string
	Type     SourceType
	Category string
	Enabled  bool
	Scrape   *ScrapeConfig // only valid for SourceTypeScrape

	LastCheckedAt     time.Time
	LastStatus        SourceStatus
	ConsecutiveErrors int
}

// Validate rejects misconfigured sources at construction time.
func (s Source) Validate() error {
	if s.ID == "" && s.Name == "" {
		return fmt.Errorf("source without id or name")
	}
	if s.URL == "" {
		return fmt.Errorf("source %s: url is required", s.Label())
	}
	switch s.Type {
	case SourceTypeFeed, SourceTypeJSONFeed:
		if s.Scrape != nil {
			return fmt.Errorf("source %s: selector config is only valid for scrape sources", s.Label())
		}
	case SourceTypeScrape:
		if s.Scrape == nil || len(s.Scrape.Selectors) == 0 {
			return fmt.Errorf("source %s: scrape source needs at least one selector set", s.Label())
		}
		for _, set := range s.Scrape.Selectors {
			if set.Item == "" || set.Title == "" {
				return fmt.Errorf("source %s: selector set %q needs item and title selectors", s.Label(), set.Name)
			}
		}
	default:
		return fmt.Errorf("source %s: unknown type %q", s.Label(), s.Type)
	}
	return nil
}

// Label returns the best human-readable identifier for logs and errors.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
