package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/lysyi3m/rss-deck/app/feed"
)

// Store holds subscriptions, annotations and AI settings, and writes the whole
// snapshot to its backend on every mutation before returning.
type Store struct {
	mu        sync.RWMutex
	backend   Backend
	namespace string

	state     Snapshot
	favorites map[string]struct{}
	readLater map[string]struct{}
	history   map[string]struct{}

	// Not persisted
	status ServiceStatus
	models []string
}

func New(backend Backend, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	s := &Store{
		backend:   backend,
		namespace: namespace,
		status:    StatusChecking,
		models:    []string{},
	}
	s.commit(Snapshot{})
	return s
}

// Load replaces the in-memory state with the persisted record. A namespace
// without a record yields an empty store.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Load(ctx, s.namespace)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot Snapshot
	if len(data) > 0 {
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(snapshot)

	slog.Debug("Store loaded",
		"namespace", s.namespace,
		"subscriptions", len(s.state.FeedURLs),
		"favorites", len(s.state.Favorites),
		"read_later", len(s.state.ReadLater),
		"history", len(s.state.History),
		"items", len(s.state.AllItems))

	return nil
}

func (s *Store) AddSubscription(ctx context.Context, feedURL string) (bool, error) {
	if feedURL == "" {
		return false, nil
	}
	return s.mutate(ctx, func(next *Snapshot) bool {
		if slices.Contains(next.FeedURLs, feedURL) {
			return false
		}
		next.FeedURLs = append(next.FeedURLs, feedURL)
		return true
	})
}

// RemoveSubscription drops feedURL from the subscriptions. Annotations of
// items that came from it are kept.
func (s *Store) RemoveSubscription(ctx context.Context, feedURL string) (bool, error) {
	return s.mutate(ctx, func(next *Snapshot) bool {
		i := slices.Index(next.FeedURLs, feedURL)
		if i < 0 {
			return false
		}
		next.FeedURLs = slices.Delete(next.FeedURLs, i, i+1)
		return true
	})
}

// ToggleFavorite flips membership of link and returns the new membership.
func (s *Store) ToggleFavorite(ctx context.Context, link string) (bool, error) {
	return s.toggle(ctx, link, func(next *Snapshot) *[]string { return &next.Favorites })
}

func (s *Store) ToggleReadLater(ctx context.Context, link string) (bool, error) {
	return s.toggle(ctx, link, func(next *Snapshot) *[]string { return &next.ReadLater })
}

// MarkAsRead adds link to the history. It never removes.
func (s *Store) MarkAsRead(ctx context.Context, link string) error {
	if link == "" {
		return nil
	}
	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		if slices.Contains(next.History, link) {
			return false
		}
		next.History = append(next.History, link)
		return true
	})
	return err
}

// SetTags replaces the tag list stored for link.
func (s *Store) SetTags(ctx context.Context, link string, tags []string) error {
	if link == "" {
		return nil
	}
	replacement := make([]string, len(tags))
	copy(replacement, tags)

	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		if current, ok := next.Tags[link]; ok && slices.Equal(current, replacement) {
			return false
		}
		next.Tags[link] = replacement
		return true
	})
	return err
}

// SaveSession stores the feeds and items of the last aggregation cycle.
func (s *Store) SaveSession(ctx context.Context, feeds []feed.Feed, items []feed.Item) error {
	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		next.Feeds = feeds
		next.AllItems = items
		return true
	})
	return err
}

func (s *Store) SetSelectedModel(ctx context.Context, model string) error {
	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		if next.SelectedModel != nil && *next.SelectedModel == model {
			return false
		}
		next.SelectedModel = &model
		return true
	})
	return err
}

// SetAvailableModels records the models the AI service reported. When no
// model is selected yet the first one becomes the selection.
func (s *Store) SetAvailableModels(ctx context.Context, models []string) error {
	s.mu.Lock()
	s.models = slices.Clone(models)
	s.mu.Unlock()

	if len(models) == 0 {
		return nil
	}

	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		if next.SelectedModel != nil && *next.SelectedModel != "" {
			return false
		}
		first := models[0]
		next.SelectedModel = &first
		return true
	})
	return err
}

func (s *Store) SetServiceStatus(status ServiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) ServiceStatus() ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) AvailableModels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.models)
}

// SelectedModel returns the selected model or "" when none is selected.
func (s *Store) SelectedModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.SelectedModel == nil {
		return ""
	}
	return *s.state.SelectedModel
}

func (s *Store) Subscriptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.FeedURLs)
}

func (s *Store) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Favorites)
}

func (s *Store) ReadLater() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.ReadLater)
}

func (s *Store) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.History)
}

func (s *Store) IsFavorite(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[link]
	return ok
}

func (s *Store) IsReadLater(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.readLater[link]
	return ok
}

func (s *Store) IsRead(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.history[link]
	return ok
}

// TagsFor returns the stored tag list for link and whether one exists.
func (s *Store) TagsFor(link string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags, ok := s.state.Tags[link]
	if !ok {
		return nil, false
	}
	return slices.Clone(tags), true
}

// Session returns the feeds and items saved by the last SaveSession.
func (s *Store) Session() ([]feed.Feed, []feed.Item) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Feeds), slices.Clone(s.state.AllItems)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) toggle(ctx context.Context, link string, set func(*Snapshot) *[]string) (bool, error) {
	if link == "" {
		return false, nil
	}

	var member bool
	_, err := s.mutate(ctx, func(next *Snapshot) bool {
		links := set(next)
		if i := slices.Index(*links, link); i >= 0 {
			*links = slices.Delete(*links, i, i+1)
			member = false
		} else {
			*links = append(*links, link)
			member = true
		}
		return true
	})
	if err != nil {
		return false, err
	}
	return member, nil
}

// mutate applies fn to a copy of the state and, when fn reports a change,
// persists the copy and only then makes it current.
func (s *Store) mutate(ctx context.Context, fn func(next *Snapshot) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if !fn(&next) {
		return false, nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.backend.Save(ctx, s.namespace, data); err != nil {
		return false, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.commit(next)
	return true, nil
}

// commit installs snapshot as the current state. Callers hold mu for writing
// unless the store is still being constructed.
func (s *Store) commit(snapshot Snapshot) {
	snapshot.FeedURLs = unique(snapshot.FeedURLs)
	snapshot.Favorites = unique(snapshot.Favorites)
	snapshot.ReadLater = unique(snapshot.ReadLater)
	snapshot.History = unique(snapshot.History)
	if snapshot.Tags == nil {
		snapshot.Tags = make(map[string][]string)
	}
	if snapshot.Feeds == nil {
		snapshot.Feeds = []feed.Feed{}
	}
	if snapshot.AllItems == nil {
		snapshot.AllItems = []feed.Item{}
	}

	s.state = snapshot
	s.favorites = index(snapshot.Favorites)
	s.readLater = index(snapshot.ReadLater)
	s.history = index(snapshot.History)
}

func (snapshot Snapshot) clone() Snapshot {
	next := snapshot
	next.FeedURLs = slices.Clone(snapshot.FeedURLs)
	next.Favorites = slices.Clone(snapshot.Favorites)
	next.ReadLater = slices.Clone(snapshot.ReadLater)
	next.History = slices.Clone(snapshot.History)
	next.Tags = maps.Clone(snapshot.Tags)
	return next
}

// unique drops empty strings and later duplicates, keeping first-seen order.
func unique(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func index(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
