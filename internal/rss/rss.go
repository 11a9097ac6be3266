package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultItemsPerSource caps how many entries are read from the top of each feed.
const DefaultItemsPerSource = 5

// Source is one configured feed.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Item is a raw feed entry, before any filtering.
type Item struct {
	Title       string
	Link        string
	PublishedAt *time.Time // published, else updated; nil when the feed had neither
	RawSummary  string
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	parser         *gofeed.Parser
	itemsPerSource int
}

func NewFetcher(timeout time.Duration, itemsPerSource int) *Fetcher {
	if itemsPerSource <= 0 {
		itemsPerSource = DefaultItemsPerSource
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "dailyletter/1.0"
	return &Fetcher{parser: parser, itemsPerSource: itemsPerSource}
}

// FetchFeed returns the first entries of the feed at url. Any network, status
// or parse failure is returned as an error; callers treat it as an empty source.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) ([]Item, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	n := len(feed.Items)
	if n > f.itemsPerSource {
		n = f.itemsPerSource
	}
	items := make([]Item, 0, n)
	for _, it := range feed.Items[:n] {
		if it == nil {
			continue
		}
		items = append(items, toItem(it))
	}
	return items, nil
}

func toItem(it *gofeed.Item) Item {
	published := it.PublishedParsed
	if published == nil {
		published = it.UpdatedParsed
	}
	link := it.Link
	if link == "" && len(it.Links) > 0 {
		link = it.Links[0]
	}
	return Item{
		Title:       it.Title,
		Link:        link,
		PublishedAt: published,
		RawSummary:  it.Description,
	}
}
