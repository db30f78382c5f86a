package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/lysyi3m/rss-deck/app/feed"
)

// failingBackend rejects every save
type failingBackend struct{}

func (b *failingBackend) Load(ctx context.Context, namespace string) ([]byte, error) {
	return nil, nil
}

func (b *failingBackend) Save(ctx context.Context, namespace string, data []byte) error {
	return errors.New("disk full")
}

func newLoadedStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := New(backend, "")
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func TestLoadEmptyNamespace(t *testing.T) {
	s := newLoadedStore(t, NewMemoryBackend())

	if len(s.Subscriptions()) != 0 || len(s.Favorites()) != 0 || len(s.History()) != 0 {
		t.Error("Expected empty store")
	}
	if s.SelectedModel() != "" {
		t.Errorf("Expected no selected model, got '%s'", s.SelectedModel())
	}
	if s.ServiceStatus() != StatusChecking {
		t.Errorf("Expected initial status checking, got %s", s.ServiceStatus())
	}
}

func TestAddSubscription(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, NewMemoryBackend())

	added, err := s.AddSubscription(ctx, "https://a.test/rss")
	if err != nil || !added {
		t.Fatalf("Expected first add to succeed, got %t, %v", added, err)
	}
	added, err = s.AddSubscription(ctx, "https://b.test/rss")
	if err != nil || !added {
		t.Fatalf("Expected second add to succeed, got %t, %v", added, err)
	}
	added, err = s.AddSubscription(ctx, "https://a.test/rss")
	if err != nil || added {
		t.Errorf("Expected duplicate add to be a no-op, got %t, %v", added, err)
	}

	expected := []string{"https://a.test/rss", "https://b.test/rss"}
	if !reflect.DeepEqual(s.Subscriptions(), expected) {
		t.Errorf("Expected %v, got %v", expected, s.Subscriptions())
	}
}

func TestRemoveSubscriptionKeepsAnnotations(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, NewMemoryBackend())

	s.AddSubscription(ctx, "https://a.test/rss")
	s.ToggleFavorite(ctx, "https://a.test/1")
	s.ToggleReadLater(ctx, "https://a.test/1")
	s.MarkAsRead(ctx, "https://a.test/1")
	s.SetTags(ctx, "https://a.test/1", []string{"Tech"})

	removed, err := s.RemoveSubscription(ctx, "https://a.test/rss")
	if err != nil || !removed {
		t.Fatalf("Expected removal, got %t, %v", removed, err)
	}
	removed, err = s.RemoveSubscription(ctx, "https://a.test/rss")
	if err != nil || removed {
		t.Errorf("Expected second removal to be a no-op, got %t, %v", removed, err)
	}

	if len(s.Subscriptions()) != 0 {
		t.Errorf("Expected no subscriptions, got %v", s.Subscriptions())
	}
	if !s.IsFavorite("https://a.test/1") || !s.IsReadLater("https://a.test/1") || !s.IsRead("https://a.test/1") {
		t.Error("Expected annotations to survive subscription removal")
	}
	if tags, ok := s.TagsFor("https://a.test/1"); !ok || !reflect.DeepEqual(tags, []string{"Tech"}) {
		t.Errorf("Expected tags to survive, got %v", tags)
	}
}

func TestToggleIsInvolution(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, NewMemoryBackend())
	s.ToggleFavorite(ctx, "x")
	s.ToggleReadLater(ctx, "y")

	before := s.Snapshot()

	member, err := s.ToggleFavorite(ctx, "z")
	if err != nil || !member {
		t.Fatalf("Expected z to become a favorite, got %t, %v", member, err)
	}
	member, err = s.ToggleFavorite(ctx, "z")
	if err != nil || member {
		t.Fatalf("Expected z to stop being a favorite, got %t, %v", member, err)
	}
	s.ToggleReadLater(ctx, "y")
	s.ToggleReadLater(ctx, "y")

	after := s.Snapshot()
	if !reflect.DeepEqual(before.Favorites, after.Favorites) {
		t.Errorf("Expected favorites %v, got %v", before.Favorites, after.Favorites)
	}
	if !reflect.DeepEqual(before.ReadLater, after.ReadLater) {
		t.Errorf("Expected read later %v, got %v", before.ReadLater, after.ReadLater)
	}
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newLoadedStore(t, backend)

	s.MarkAsRead(ctx, "x")
	saves := backend.Saves()
	s.MarkAsRead(ctx, "x")

	if !reflect.DeepEqual(s.History(), []string{"x"}) {
		t.Errorf("Expected history [x], got %v", s.History())
	}
	if backend.Saves() != saves {
		t.Error("Expected repeated mark-read not to write")
	}
}

func TestEmptyLinkIsIgnored(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newLoadedStore(t, backend)

	if member, err := s.ToggleFavorite(ctx, ""); member || err != nil {
		t.Errorf("Expected ignored toggle, got %t, %v", member, err)
	}
	if member, err := s.ToggleReadLater(ctx, ""); member || err != nil {
		t.Errorf("Expected ignored toggle, got %t, %v", member, err)
	}
	if err := s.MarkAsRead(ctx, ""); err != nil {
		t.Errorf("Expected ignored mark-read, got %v", err)
	}
	if err := s.SetTags(ctx, "", []string{"Tech"}); err != nil {
		t.Errorf("Expected ignored set-tags, got %v", err)
	}

	if backend.Saves() != 0 {
		t.Errorf("Expected no writes, got %d", backend.Saves())
	}
}

func TestSetTagsReplaces(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, NewMemoryBackend())

	s.SetTags(ctx, "x", []string{"Tech", "AI"})
	s.SetTags(ctx, "x", []string{"Finance"})

	tags, ok := s.TagsFor("x")
	if !ok || !reflect.DeepEqual(tags, []string{"Finance"}) {
		t.Errorf("Expected [Finance], got %v", tags)
	}

	if _, ok := s.TagsFor("y"); ok {
		t.Error("Expected no override for y")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newLoadedStore(t, backend)

	s.AddSubscription(ctx, "https://a.test/rss")
	s.ToggleFavorite(ctx, "x")
	s.ToggleReadLater(ctx, "y")
	s.MarkAsRead(ctx, "x")
	s.SetTags(ctx, "x", []string{"Tech"})
	s.SetSelectedModel(ctx, "mistral")
	s.SaveSession(ctx,
		[]feed.Feed{{Title: "A", FeedURL: "https://a.test/rss"}},
		[]feed.Item{{Title: "One", Link: "x", FeedTitle: "A"}})

	reloaded := newLoadedStore(t, backend)

	if !reflect.DeepEqual(reloaded.Snapshot(), s.Snapshot()) {
		t.Errorf("Expected reloaded snapshot to match:\n%+v\n%+v", reloaded.Snapshot(), s.Snapshot())
	}
	if reloaded.SelectedModel() != "mistral" {
		t.Errorf("Expected model mistral, got '%s'", reloaded.SelectedModel())
	}
	feeds, items := reloaded.Session()
	if len(feeds) != 1 || len(items) != 1 || items[0].Title != "One" {
		t.Errorf("Unexpected session: %v %v", feeds, items)
	}
}

func TestPersistedLayout(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newLoadedStore(t, backend)
	s.AddSubscription(ctx, "https://a.test/rss")

	data, _ := backend.Load(ctx, DefaultNamespace)

	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}

	for _, key := range []string{"feedUrls", "favorites", "readLater", "history", "tags", "selectedModel", "feeds", "allItems"} {
		if _, ok := record[key]; !ok {
			t.Errorf("Expected key %s in persisted record", key)
		}
	}
	if string(record["selectedModel"]) != "null" {
		t.Errorf("Expected null selectedModel, got %s", record["selectedModel"])
	}
}

func TestLoadDeduplicatesSets(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Save(ctx, "custom", []byte(`{"feedUrls":["a","a","b"],"favorites":["x","x",""],"history":null}`))

	s := New(backend, "custom")
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(s.Subscriptions(), []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", s.Subscriptions())
	}
	if !reflect.DeepEqual(s.Favorites(), []string{"x"}) {
		t.Errorf("Expected [x], got %v", s.Favorites())
	}
}

func TestLoadRejectsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Save(ctx, DefaultNamespace, []byte("{not json"))

	if err := New(backend, "").Load(ctx); err == nil {
		t.Error("Expected error for corrupt record")
	}
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	s := New(&failingBackend{}, "")

	if _, err := s.ToggleFavorite(context.Background(), "x"); err == nil {
		t.Fatal("Expected save error")
	}
	if s.IsFavorite("x") {
		t.Error("Expected favorite not to be applied after failed save")
	}
}

func TestSetAvailableModelsDefaultsSelection(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, NewMemoryBackend())

	if err := s.SetAvailableModels(ctx, []string{"llama3:latest", "mistral"}); err != nil {
		t.Fatalf("SetAvailableModels failed: %v", err)
	}
	if s.SelectedModel() != "llama3:latest" {
		t.Errorf("Expected first model selected, got '%s'", s.SelectedModel())
	}

	s.SetSelectedModel(ctx, "mistral")
	s.SetAvailableModels(ctx, []string{"llama3:latest", "mistral"})
	if s.SelectedModel() != "mistral" {
		t.Errorf("Expected explicit selection to stick, got '%s'", s.SelectedModel())
	}

	if !reflect.DeepEqual(s.AvailableModels(), []string{"llama3:latest", "mistral"}) {
		t.Errorf("Unexpected models: %v", s.AvailableModels())
	}

	s.SetServiceStatus(StatusRunning)
	if s.ServiceStatus() != StatusRunning {
		t.Errorf("Expected running, got %s", s.ServiceStatus())
	}
}
