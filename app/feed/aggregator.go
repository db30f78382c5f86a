package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Aggregator fans out fetches over a set of feed URLs and merges the results
// into one newest-first timeline.
type Aggregator struct {
	gateway  Gateway
	inFlight atomic.Int32
}

func NewAggregator(gateway Gateway) *Aggregator {
	return &Aggregator{gateway: gateway}
}

// Loading reports whether an aggregation cycle is running.
func (a *Aggregator) Loading() bool {
	return a.inFlight.Load() > 0
}

// FetchAll fetches every URL concurrently and waits for all of them. A failing
// URL is recorded in Result.Errors and never affects the other URLs.
func (a *Aggregator) FetchAll(ctx context.Context, urls []string) Result {
	result := Result{
		Feeds:  []Feed{},
		Items:  []Item{},
		Errors: []FetchError{},
	}
	if len(urls) == 0 {
		return result
	}

	a.inFlight.Add(1)
	defer a.inFlight.Add(-1)

	started := time.Now()
	fetched := make([]*Feed, len(urls))

	var g errgroup.Group
	for i, feedURL := range urls {
		g.Go(func() error {
			feed, err := a.gateway.Fetch(ctx, feedURL)
			if err != nil {
				slog.Warn("Feed fetch failed", "url", feedURL, "error", err)
				return nil
			}
			if feed == nil {
				feed = &Feed{}
			}
			fetched[i] = feed
			return nil
		})
	}
	_ = g.Wait()

	for i, feedURL := range urls {
		feed := fetched[i]
		if feed == nil {
			result.Errors = append(result.Errors, newFetchError(feedURL))
			continue
		}

		feed.FeedURL = feedURL
		for j := range feed.Items {
			feed.Items[j].FeedTitle = feed.Title
			feed.Items[j].FeedURL = feedURL
		}
		result.Feeds = append(result.Feeds, *feed)
		result.Items = append(result.Items, feed.Items...)
	}

	SortByRecency(result.Items)

	slog.Debug("Aggregation completed",
		"feeds", len(urls),
		"failed", len(result.Errors),
		"items", len(result.Items),
		"duration", time.Since(started))

	return result
}

// SortByRecency sorts items newest first. Items with equal timestamps keep
// their relative order; undated items sink to the end.
func SortByRecency(items []Item) {
	type keyed struct {
		item Item
		at   time.Time
	}

	sorted := make([]keyed, len(items))
	for i, item := range items {
		sorted[i] = keyed{item: item, at: item.PublishedAt()}
	}

	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return b.at.Compare(a.at)
	})

	for i := range sorted {
		items[i] = sorted[i].item
	}
}
