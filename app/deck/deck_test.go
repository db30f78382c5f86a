package deck

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/lysyi3m/rss-deck/app/ai"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/store"
	"github.com/lysyi3m/rss-deck/app/view"
)

// MockFetcher returns canned items per URL
type MockFetcher struct {
	mu    sync.Mutex
	feeds map[string][]feed.Item
	calls [][]string
}

func (m *MockFetcher) FetchAll(ctx context.Context, urls []string) feed.Result {
	m.mu.Lock()
	m.calls = append(m.calls, urls)
	m.mu.Unlock()

	result := feed.Result{Feeds: []feed.Feed{}, Items: []feed.Item{}, Errors: []feed.FetchError{}}
	for _, u := range urls {
		items, ok := m.feeds[u]
		if !ok {
			result.Errors = append(result.Errors, feed.FetchError{URL: u, Message: "Failed to load: " + u})
			continue
		}
		for _, item := range items {
			item.FeedURL = u
			result.Items = append(result.Items, item)
		}
		result.Feeds = append(result.Feeds, feed.Feed{Title: u, FeedURL: u, Items: items})
	}
	return result
}

func (m *MockFetcher) Loading() bool { return false }

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockAssistant returns fixed tags, or fails for selected titles
type MockAssistant struct {
	tags     []string
	failFor  map[string]error
	models   []string
	phrases  []string
	summary  string
	tagCalls int
}

func (m *MockAssistant) GenerateTags(ctx context.Context, model, title, content string) ([]string, error) {
	m.tagCalls++
	m.models = append(m.models, model)
	if err, ok := m.failFor[title]; ok {
		return nil, err
	}
	return m.tags, nil
}

func (m *MockAssistant) Summarize(ctx context.Context, model string, phrases []string) (string, error) {
	m.models = append(m.models, model)
	m.phrases = phrases
	return m.summary, nil
}

// MockRecorder keeps recorded runs in memory
type MockRecorder struct {
	runs []database.RefreshRun
}

func (m *MockRecorder) Record(ctx context.Context, run database.RefreshRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func newTestDeck(t *testing.T, fetcher *MockFetcher, assistant Assistant) *Deck {
	t.Helper()
	st := store.New(store.NewMemoryBackend(), "")
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return New(st, fetcher, assistant)
}

func titles(items []feed.Item) []string {
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = item.Title
	}
	return result
}

func TestAddSubscriptionRefreshes(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{
		"https://a.test/rss": {{Title: "A1", Link: "https://a.test/1"}},
	}}
	d := newTestDeck(t, fetcher, nil)

	added, err := d.AddSubscription(ctx, "https://a.test/rss")
	if err != nil || !added {
		t.Fatalf("Expected subscription to be added, got %t, %v", added, err)
	}
	if fetcher.Calls() != 1 {
		t.Errorf("Expected one refresh, got %d", fetcher.Calls())
	}
	if !reflect.DeepEqual(titles(d.Items()), []string{"A1"}) {
		t.Errorf("Expected [A1], got %v", titles(d.Items()))
	}

	added, err = d.AddSubscription(ctx, "https://a.test/rss")
	if err != nil || added {
		t.Errorf("Expected duplicate to be ignored, got %t, %v", added, err)
	}
	if fetcher.Calls() != 1 {
		t.Errorf("Expected no refresh for duplicate, got %d calls", fetcher.Calls())
	}
}

func TestAddSubscriptionRejectsInvalidURL(t *testing.T) {
	fetcher := &MockFetcher{}
	d := newTestDeck(t, fetcher, nil)

	if _, err := d.AddSubscription(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
	if len(d.Store().Subscriptions()) != 0 || fetcher.Calls() != 0 {
		t.Error("Expected nothing to change for invalid URL")
	}
}

func TestRemoveSubscriptionDropsItemsAndRefreshes(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{
		"https://a.test/rss": {{Title: "A1", Link: "https://a.test/1"}},
		"https://b.test/rss": {{Title: "B1", Link: "https://b.test/1"}},
	}}
	d := newTestDeck(t, fetcher, nil)

	var triggered int
	d.SetRefreshTrigger(func(ctx context.Context) { triggered++ })

	d.Store().AddSubscription(ctx, "https://a.test/rss")
	d.Store().AddSubscription(ctx, "https://b.test/rss")
	d.Refresh(ctx)
	d.Store().ToggleFavorite(ctx, "https://a.test/1")

	removed, err := d.RemoveSubscription(ctx, "https://a.test/rss")
	if err != nil || !removed {
		t.Fatalf("Expected removal, got %t, %v", removed, err)
	}

	if triggered != 1 {
		t.Errorf("Expected refresh to be triggered once, got %d", triggered)
	}
	if !reflect.DeepEqual(titles(d.Items()), []string{"B1"}) {
		t.Errorf("Expected [B1], got %v", titles(d.Items()))
	}
	if len(d.Feeds()) != 1 {
		t.Errorf("Expected one feed left, got %d", len(d.Feeds()))
	}
	if !d.Store().IsFavorite("https://a.test/1") {
		t.Error("Expected favorite to survive removal")
	}
}

func TestRefreshReplacesSessionAndPersists(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{
		"https://a.test/rss": {{Title: "A1", Link: "https://a.test/1"}},
	}}
	d := newTestDeck(t, fetcher, nil)
	recorder := &MockRecorder{}
	d.SetRunRecorder(recorder)

	d.Store().AddSubscription(ctx, "https://a.test/rss")
	d.Store().AddSubscription(ctx, "https://broken.test/rss")

	result, err := d.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if len(result.Items) != 1 || len(d.Errors()) != 1 {
		t.Errorf("Expected one item and one error, got %d, %d", len(result.Items), len(d.Errors()))
	}
	if d.Errors()[0].Message != "Failed to load: https://broken.test/rss" {
		t.Errorf("Unexpected error message: %s", d.Errors()[0].Message)
	}

	_, items := d.Store().Session()
	if !reflect.DeepEqual(titles(items), []string{"A1"}) {
		t.Errorf("Expected session to be saved, got %v", titles(items))
	}

	if len(recorder.runs) != 1 || recorder.runs[0].Feeds != 2 || recorder.runs[0].Failed != 1 || recorder.runs[0].ID == "" {
		t.Errorf("Unexpected recorded runs: %+v", recorder.runs)
	}

	// Second cycle with no subscriptions clears the session
	d.Store().RemoveSubscription(ctx, "https://a.test/rss")
	d.Store().RemoveSubscription(ctx, "https://broken.test/rss")
	d.Refresh(ctx)
	if len(d.Items()) != 0 || len(d.Errors()) != 0 {
		t.Errorf("Expected empty session, got %v", titles(d.Items()))
	}
}

func TestNewRestoresSession(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()

	st := store.New(backend, "")
	st.Load(ctx)
	st.SaveSession(ctx, []feed.Feed{{Title: "A"}}, []feed.Item{{Title: "Saved", Link: "x"}})

	restored := store.New(backend, "")
	restored.Load(ctx)
	d := New(restored, &MockFetcher{}, nil)

	if !reflect.DeepEqual(titles(d.Items()), []string{"Saved"}) {
		t.Errorf("Expected restored items, got %v", titles(d.Items()))
	}
}

func TestViewTagsAndCounts(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{
		"https://a.test/rss": {
			{Title: "A", Link: "x", Tags: []string{"Sports"}},
			{Title: "B", Link: "y", Tags: []string{"News"}},
			{Title: "C"},
		},
	}}
	d := newTestDeck(t, fetcher, nil)
	d.AddSubscription(ctx, "https://a.test/rss")

	d.Store().ToggleFavorite(ctx, "x")
	d.Store().ToggleReadLater(ctx, "y")
	d.Store().SetTags(ctx, "x", []string{"Tech"})

	entries := d.View(view.All, "Tech")
	if len(entries) != 1 || entries[0].Title != "A" || !entries[0].Favorite {
		t.Errorf("Unexpected entries: %+v", entries)
	}

	if !reflect.DeepEqual(titles(d.Compose(view.Favorites, "")), []string{"A"}) {
		t.Errorf("Expected favorites [A], got %v", titles(d.Compose(view.Favorites, "")))
	}

	tags := d.Tags()
	if len(tags) != 2 || tags[0].Name != "News" || tags[1].Name != "Sports" {
		t.Errorf("Unexpected tag universe: %+v", tags)
	}
	if tags[0].Color != view.StringToColor("News") {
		t.Errorf("Expected tag colour, got %s", tags[0].Color)
	}

	expected := Counts{All: 3, Favorites: 1, ReadLater: 1}
	if d.Counts() != expected {
		t.Errorf("Expected counts %+v, got %+v", expected, d.Counts())
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	items := []feed.Item{
		{Title: "Tagged", Link: "t", Tags: []string{"Native"}},
		{Title: "One", Link: "1"},
		{Title: "NoLink"},
		{Title: "Two", Link: "2"},
		{Title: "Broken", Link: "b"},
		{Title: "Three", Link: "3"},
		{Title: "Four", Link: "4"},
		{Title: "Five", Link: "5"},
	}
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{"https://a.test/rss": items}}
	assistant := &MockAssistant{
		tags:    []string{"AI"},
		failFor: map[string]error{"Broken": errors.New("bad response")},
	}
	d := newTestDeck(t, fetcher, assistant)
	d.AddSubscription(ctx, "https://a.test/rss")
	d.Store().SetSelectedModel(ctx, "mistral")

	result, err := d.Analyze(ctx, view.All, "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// Batch: One, NoLink, Two, Broken, Three
	expected := AnalyzeResult{Tagged: 3, Attempted: 4}
	if result != expected {
		t.Errorf("Expected %+v, got %+v", expected, result)
	}
	for _, link := range []string{"1", "2", "3"} {
		if tags, ok := d.Store().TagsFor(link); !ok || !reflect.DeepEqual(tags, []string{"AI"}) {
			t.Errorf("Expected %s to be tagged, got %v", link, tags)
		}
	}
	if _, ok := d.Store().TagsFor("4"); ok {
		t.Error("Expected item beyond the batch to stay untagged")
	}
	if assistant.models[0] != "mistral" {
		t.Errorf("Expected selected model, got %s", assistant.models[0])
	}

	// Tagged items are no longer candidates
	assistant.failFor = nil
	result, _ = d.Analyze(ctx, view.All, "")
	if result.Attempted != 3 {
		t.Errorf("Expected Broken, Four and Five to be attempted, got %+v", result)
	}
}

func TestAnalyzeServiceUnavailable(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{feeds: map[string][]feed.Item{"https://a.test/rss": {{Title: "One", Link: "1"}}}}
	assistant := &MockAssistant{failFor: map[string]error{"One": ai.ErrServiceUnavailable}}
	d := newTestDeck(t, fetcher, assistant)
	d.AddSubscription(ctx, "https://a.test/rss")

	_, err := d.Analyze(ctx, view.All, "")
	if !errors.Is(err, ai.ErrServiceUnavailable) {
		t.Errorf("Expected ErrServiceUnavailable, got %v", err)
	}
}

func TestAnalyzeWithoutAssistant(t *testing.T) {
	d := newTestDeck(t, &MockFetcher{}, nil)

	if _, err := d.Analyze(context.Background(), view.All, ""); !errors.Is(err, ErrAssistantDisabled) {
		t.Errorf("Expected ErrAssistantDisabled, got %v", err)
	}
	if _, err := d.Report(context.Background(), view.All, ""); !errors.Is(err, ErrAssistantDisabled) {
		t.Errorf("Expected ErrAssistantDisabled, got %v", err)
	}
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	var items []feed.Item
	for i := 0; i < 25; i++ {
		items = append(items, feed.Item{Title: "T", ContentSnippet: "S"})
	}
	items[0] = feed.Item{Title: "First", ContentSnippet: "Snippet"}

	fetcher := &MockFetcher{feeds: map[string][]feed.Item{"https://a.test/rss": items}}
	assistant := &MockAssistant{summary: "# Briefing"}
	d := newTestDeck(t, fetcher, assistant)
	d.AddSubscription(ctx, "https://a.test/rss")

	report, err := d.Report(ctx, view.All, "")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report != "# Briefing" {
		t.Errorf("Unexpected report: %s", report)
	}
	if len(assistant.phrases) != 20 || assistant.phrases[0] != "First: Snippet" {
		t.Errorf("Unexpected phrases: %v", assistant.phrases)
	}
}
