package deck

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/store"
	"github.com/lysyi3m/rss-deck/app/view"
)

// Fetcher runs aggregation cycles.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) feed.Result
	Loading() bool
}

// RunRecorder keeps a history of aggregation cycles.
type RunRecorder interface {
	Record(ctx context.Context, run database.RefreshRun) error
}

// Counts are the sizes of the three views over the current session.
type Counts struct {
	All       int `json:"all"`
	Favorites int `json:"favorites"`
	ReadLater int `json:"readLater"`
}

// Deck owns the current session (the last cycle's feeds, items and errors)
// and combines it with the annotation store.
type Deck struct {
	store      *store.Store
	aggregator Fetcher
	assistant  Assistant
	recorder   RunRecorder
	trigger    func(ctx context.Context)

	mu     sync.RWMutex
	feeds  []feed.Feed
	items  []feed.Item
	errors []feed.FetchError
}

// New creates a deck whose session starts from the snapshot saved in st.
func New(st *store.Store, aggregator Fetcher, assistant Assistant) *Deck {
	feeds, items := st.Session()

	d := &Deck{
		store:      st,
		aggregator: aggregator,
		assistant:  assistant,
		feeds:      feeds,
		items:      items,
		errors:     []feed.FetchError{},
	}
	d.trigger = d.refreshInline
	return d
}

// SetRefreshTrigger replaces how subscription changes start a new cycle.
// By default the cycle runs before AddSubscription/RemoveSubscription return.
func (d *Deck) SetRefreshTrigger(trigger func(ctx context.Context)) {
	d.trigger = trigger
}

func (d *Deck) SetRunRecorder(recorder RunRecorder) {
	d.recorder = recorder
}

func (d *Deck) Store() *store.Store {
	return d.store
}

// Refresh runs one aggregation cycle over the current subscriptions and
// replaces the session with its result. The session is replaced even when
// saving it fails.
func (d *Deck) Refresh(ctx context.Context) (feed.Result, error) {
	urls := d.store.Subscriptions()
	started := time.Now()

	result := d.aggregator.FetchAll(ctx, urls)

	d.mu.Lock()
	d.feeds = result.Feeds
	d.items = result.Items
	d.errors = result.Errors
	d.mu.Unlock()

	slog.Info("Feeds refreshed",
		"feeds", len(urls),
		"failed", len(result.Errors),
		"items", len(result.Items),
		"duration", time.Since(started))

	if d.recorder != nil {
		run := database.RefreshRun{
			ID:        uuid.NewString(),
			StartedAt: started,
			Duration:  time.Since(started),
			Feeds:     len(urls),
			Failed:    len(result.Errors),
			Items:     len(result.Items),
		}
		if err := d.recorder.Record(ctx, run); err != nil {
			slog.Warn("Failed to record refresh run", "error", err)
		}
	}

	if err := d.store.SaveSession(ctx, result.Feeds, result.Items); err != nil {
		return result, fmt.Errorf("failed to save session: %w", err)
	}

	return result, nil
}

// AddSubscription subscribes to feedURL and starts a cycle when it was new.
func (d *Deck) AddSubscription(ctx context.Context, feedURL string) (bool, error) {
	if err := feed.ValidateURL(feedURL); err != nil {
		return false, err
	}

	added, err := d.store.AddSubscription(ctx, feedURL)
	if err != nil {
		return false, err
	}
	if added {
		d.trigger(ctx)
	}

	return added, nil
}

// RemoveSubscription unsubscribes from feedURL, drops its items from the
// session and starts a cycle.
func (d *Deck) RemoveSubscription(ctx context.Context, feedURL string) (bool, error) {
	removed, err := d.store.RemoveSubscription(ctx, feedURL)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	d.feeds = slices.DeleteFunc(slices.Clone(d.feeds), func(f feed.Feed) bool { return f.FeedURL == feedURL })
	d.items = slices.DeleteFunc(slices.Clone(d.items), func(i feed.Item) bool { return i.FeedURL == feedURL })
	d.mu.Unlock()

	d.trigger(ctx)

	return removed, nil
}

func (d *Deck) Items() []feed.Item {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.items)
}

func (d *Deck) Feeds() []feed.Feed {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.feeds)
}

func (d *Deck) Errors() []feed.FetchError {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.errors)
}

func (d *Deck) Loading() bool {
	return d.aggregator.Loading()
}

// Compose returns the session items for a view and optional tag.
func (d *Deck) Compose(kind view.Kind, tag string) []feed.Item {
	return view.Compose(d.Items(), kind, tag, d.store)
}

// View is Compose with annotations attached.
func (d *Deck) View(kind view.Kind, tag string) []view.Entry {
	return view.Enrich(d.Compose(kind, tag), d.store)
}

// Tags lists the feed-native tags of the session with their colours.
func (d *Deck) Tags() []view.Tag {
	names := view.TagUniverse(d.Items())
	tags := make([]view.Tag, len(names))
	for i, name := range names {
		tags[i] = view.NewTag(name)
	}
	return tags
}

func (d *Deck) Counts() Counts {
	items := d.Items()
	return Counts{
		All:       len(items),
		Favorites: len(view.Compose(items, view.Favorites, "", d.store)),
		ReadLater: len(view.Compose(items, view.ReadLater, "", d.store)),
	}
}

func (d *Deck) refreshInline(ctx context.Context) {
	if _, err := d.Refresh(ctx); err != nil {
		slog.Error("Refresh failed", "error", err)
	}
}
