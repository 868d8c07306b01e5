package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const userAgent = "NewsRadar/1.0"

// FeedCollector fetches RSS, Atom, RDF and JSON Feed sources. gofeed's
// universal parser detects the payload format, so the feed and json_feed
// source types share this one implementation.
type FeedCollector struct {
	client *http.Client
}

var _ ports.Collector = (*FeedCollector)(nil)

// NewFeedCollector wires an HTTP client; nil selects a 20s-timeout default.
func NewFeedCollector(client *http.Client) *FeedCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &FeedCollector{client: client}
}

// Fetch downloads and parses one feed. Parse failures (malformed XML, odd RDF
// variants) come back as a classified FetchError with an empty item list.
func (f *FeedCollector) Fetch(ctx context.Context, source domain.Source) ([]domain.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindNetwork, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Source: source.Label(),
			Kind:   domain.FetchKindNetwork,
			Err:    fmt.Errorf("feed returned %s", resp.Status),
		}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Source: source.Label(), Kind: domain.FetchKindParse, Err: err}
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		item := domain.RawItem{
			Title:   strings.TrimSpace(it.Title),
			Content: feedItemContent(it),
			Link:    strings.TrimSpace(it.Link),
		}
		if item.Link == "" || item.Title == "" {
			continue
		}
		if len(it.Authors) > 0 && it.Authors[0] != nil {
			item.Author = it.Authors[0].Name
		}
		if it.Image != nil {
			item.ImageURL = it.Image.URL
		}
		if it.PublishedParsed != nil {
			t := it.PublishedParsed.UTC()
			item.Published = &t
		} else if it.UpdatedParsed != nil {
			t := it.UpdatedParsed.UTC()
			item.Published = &t
		}
		items = append(items, item)
	}

	return items, nil
}

// feedItemContent prefers the full content body over the short description.
func feedItemContent(it *gofeed.Item) string {
	if body := strings.TrimSpace(it.Content); body != "" {
		return body
	}
	return strings.TrimSpace(it.Description)
}
