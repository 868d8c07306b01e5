package collector

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// ScrapeCollector extracts items from HTML pages through an injected
// PageFetcher. Each source carries an ordered list of selector-set
// candidates; the first set that yields items with a non-empty title and
// content wins. That covers heterogeneous page templates (standard article
// list vs. video-embed layout) without per-page-type source config.
type ScrapeCollector struct {
	fetcher ports.PageFetcher
	logger  *slog.Logger
}

var _ ports.Collector = (*ScrapeCollector)(nil)

// NewScrapeCollector wires the page fetcher used to render source pages.
func NewScrapeCollector(fetcher ports.PageFetcher, logger *slog.Logger) *ScrapeCollector {
	return &ScrapeCollector{fetcher: fetcher, logger: logger}
}

// Fetch renders the source page and walks the selector-set candidates.
// No matching layout across all sets yields ErrSelectorMiss.
func (s *ScrapeCollector) Fetch(ctx context.Context, source domain.Source) ([]domain.RawItem, error) {
	if source.Scrape == nil || len(source.Scrape.Selectors) == 0 {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindParse, Err: domain.ErrSelectorMiss}
	}

	html, err := s.fetcher.FetchHTML(ctx, source.URL)
	if err != nil {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindNetwork, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindParse, Err: err}
	}

	base, _ := url.Parse(source.URL)

	for _, set := range source.Scrape.Selectors {
		items := s.extractWithSet(doc, set, base)
		if len(items) > 0 {
			s.debug("selector set matched", "source", source.Label(), "set", set.Name, "items", len(items))
			return items, nil
		}
	}

	return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindParse, Err: domain.ErrSelectorMiss}
}

func (s *ScrapeCollector) extractWithSet(doc *goquery.Document, set domain.SelectorSet, base *url.URL) []domain.RawItem {
	var items []domain.RawItem

	doc.Find(set.Item).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(set.Title).First().Text())
		content := strings.TrimSpace(sel.Find(set.Content).First().Text())
		if title == "" || content == "" {
			return
		}

		item := domain.RawItem{Title: title, Content: content}

		linkSel := sel.Find(set.Link).First()
		if set.Link == "" {
			linkSel = sel.Find("a").First()
		}
		href, _ := linkSel.Attr("href")
		item.Link = resolveLink(base, href)
		if item.Link == "" {
			return
		}

		if set.Time != "" {
			raw := strings.TrimSpace(sel.Find(set.Time).First().Text())
			item.Published = ParsePublishTime(raw)
		}
		if img, ok := sel.Find("img").First().Attr("src"); ok {
			item.ImageURL = resolveLink(base, img)
		}

		items = append(items, item)
	})

	return items
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func (s *ScrapeCollector) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
