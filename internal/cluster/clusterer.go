package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const maxKeywords = 5

// Category is one entry of the ordered category→keyword table. Order matters:
// the first matching category wins, so the table is a slice, not a map.
type Category struct {
	ID       string
	Keywords []string
}

// DefaultCategories mirrors the standard news taxonomy the product shipped
// with; configuration can replace it wholesale.
var DefaultCategories = []Category{
	{"politics", []string{"politics", "government", "president", "parliament", "election", "policy", "minister", "senate", "legislation"}},
	{"military", []string{"military", "army", "weapon", "missile", "war", "defense", "troops", "airstrike", "navy"}},
	{"international", []string{"international", "global", "united nations", "diplomacy", "foreign", "embassy", "treaty"}},
	{"technology", []string{"technology", "software", "internet", "ai", "artificial intelligence", "chip", "semiconductor", "startup", "cyber"}},
	{"business", []string{"business", "economy", "market", "stock", "trade", "investment", "company", "inflation", "gdp", "revenue"}},
	{"science", []string{"science", "research", "study", "experiment", "space", "physics", "climate", "gene", "discovery"}},
	{"sports", []string{"sports", "football", "basketball", "match", "olympic", "champion", "league", "tournament", "athlete"}},
	{"entertainment", []string{"entertainment", "movie", "film", "music", "celebrity", "concert", "actor", "box office"}},
	{"health", []string{"health", "medical", "disease", "vaccine", "hospital", "treatment", "virus", "patient", "drug"}},
	{"culture", []string{"culture", "art", "history", "education", "school", "museum", "literature", "exhibition"}},
}

const uncategorized = "uncategorized"

// Params tune one clustering pass. Epsilon is a cosine distance in [0,2].
type Params struct {
	Epsilon    float64
	MinSamples int
}

// EventClusterer groups near-duplicate articles into events with TF-IDF
// vectors and density-based clustering. It is read-only over articles and
// keeps no shared mutable state, so it may run beside an ingestion cycle.
type EventClusterer struct {
	tok           Tokenizer
	maxFeatures   int
	summaryLen    int
	summaryWindow int
	categories    []Category
	params        Params
	logger        *slog.Logger
}

var _ ports.Clusterer = (*EventClusterer)(nil)

// Option adjusts clusterer construction.
type Option func(*EventClusterer)

// WithParams overrides the default epsilon/minSamples.
func WithParams(p Params) Option {
	return func(c *EventClusterer) {
		if p.Epsilon > 0 {
			c.params.Epsilon = p.Epsilon
		}
		if p.MinSamples > 0 {
			c.params.MinSamples = p.MinSamples
		}
	}
}

// WithMaxFeatures caps the TF-IDF vocabulary.
func WithMaxFeatures(n int) Option {
	return func(c *EventClusterer) {
		if n > 0 {
			c.maxFeatures = n
		}
	}
}

// WithSummaryBounds sets the summary target length and the sentence-boundary
// search window, both in runes.
func WithSummaryBounds(length, window int) Option {
	return func(c *EventClusterer) {
		if length > 0 {
			c.summaryLen = length
		}
		if window > length {
			c.summaryWindow = window
		}
	}
}

// WithCategories replaces the category→keyword table.
func WithCategories(categories []Category) Option {
	return func(c *EventClusterer) {
		if len(categories) > 0 {
			c.categories = categories
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *EventClusterer) { c.logger = l }
}

// New builds a clusterer around the given tokenizer.
func New(tok Tokenizer, opts ...Option) *EventClusterer {
	c := &EventClusterer{
		tok:           tok,
		maxFeatures:   5000,
		summaryLen:    200,
		summaryWindow: 300,
		categories:    DefaultCategories,
		params:        Params{Epsilon: 0.5, MinSamples: 2},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster groups the article window into events. An empty corpus degrades to
// an empty result; it is not an error for callers. Singletons are noise and
// never surface as size-1 events.
func (c *EventClusterer) Cluster(ctx context.Context, articles []domain.Article) ([]domain.Event, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]string, len(articles))
	for i, art := range articles {
		docs[i] = art.Title + " " + art.Content
	}

	vectors := NewVectorizer(c.tok, c.maxFeatures).FitTransform(docs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels := dbscan(vectors, c.params.Epsilon, c.params.MinSamples)

	// Group members per label, preserving corpus order. The representative
	// is always the first member in that order.
	order := []int{}
	groups := map[int][]domain.Article{}
	for i, label := range labels {
		if label == noiseLabel {
			continue
		}
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], articles[i])
	}

	events := make([]domain.Event, 0, len(order))
	for _, label := range order {
		members := mergeSameSource(groups[label])
		rep := members[0]

		event := domain.Event{
			ID:                  fmt.Sprintf("event_%d", label),
			Title:               rep.Title,
			Summary:             c.summarize(rep),
			Keywords:            c.keywords(rep.Title),
			Category:            c.categorize(rep),
			EarliestPublishedAt: earliestPublished(members),
			RepresentativeID:    rep.ID,
		}
		seenSources := map[string]struct{}{}
		for _, m := range members {
			event.MemberIDs = append(event.MemberIDs, m.ID)
			if _, ok := seenSources[m.SourceName]; !ok {
				seenSources[m.SourceName] = struct{}{}
				event.Sources = append(event.Sources, m.SourceName)
			}
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if len(events[i].MemberIDs) != len(events[j].MemberIDs) {
			return len(events[i].MemberIDs) > len(events[j].MemberIDs)
		}
		return laterTime(events[i].EarliestPublishedAt, events[j].EarliestPublishedAt)
	})

	if c.logger != nil {
		c.logger.Debug("clustering pass done", "articles", len(articles), "events", len(events))
	}
	return events, nil
}

// mergeSameSource collapses multiple reports from one source to the most
// recent one. A dated report displaces an undated incumbent; an undated
// report never displaces a dated one.
func mergeSameSource(members []domain.Article) []domain.Article {
	bySource := map[string]int{}
	merged := make([]domain.Article, 0, len(members))
	for _, m := range members {
		i, seen := bySource[m.SourceName]
		if !seen {
			bySource[m.SourceName] = len(merged)
			merged = append(merged, m)
			continue
		}
		if m.PublishedAt == nil {
			continue
		}
		if merged[i].PublishedAt == nil || m.PublishedAt.After(*merged[i].PublishedAt) {
			merged[i] = m
		}
	}
	return merged
}

func earliestPublished(members []domain.Article) *time.Time {
	var earliest *time.Time
	for _, m := range members {
		if m.PublishedAt == nil {
			continue
		}
		if earliest == nil || m.PublishedAt.Before(*earliest) {
			t := *m.PublishedAt
			earliest = &t
		}
	}
	return earliest
}

func laterTime(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

var sentenceEnders = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, '。': {}, '！': {}, '？': {},
}

// summarize takes the leading summaryLen runes of the representative content,
// extended up to summaryWindow to land on a sentence boundary.
func (c *EventClusterer) summarize(rep domain.Article) string {
	content := strings.TrimSpace(rep.Content)
	if content == "" {
		return rep.Title
	}

	runes := []rune(content)
	if len(runes) <= c.summaryLen {
		return content
	}

	limit := c.summaryWindow
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := c.summaryLen; i < limit; i++ {
		if _, ok := sentenceEnders[runes[i]]; ok {
			return string(runes[:i+1])
		}
	}
	return string(runes[:c.summaryLen]) + "..."
}

// keywords picks up to five distinct non-stopword tokens from the title.
func (c *EventClusterer) keywords(title string) []string {
	var keywords []string
	seen := map[string]struct{}{}
	for _, tok := range c.tok.Tokens(title) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// categorize matches the category table against the representative text;
// title matches take priority over content matches.
func (c *EventClusterer) categorize(rep domain.Article) string {
	title := strings.ToLower(rep.Title)
	text := title + " " + strings.ToLower(rep.Content)

	var contentMatch string
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(title, kw) {
				return cat.ID
			}
			if contentMatch == "" && strings.Contains(text, kw) {
				contentMatch = cat.ID
			}
		}
	}
	if contentMatch != "" {
		return contentMatch
	}
	return uncategorized
}
