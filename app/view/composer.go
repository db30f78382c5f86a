package view

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lysyi3m/rss-deck/app/feed"
)

type Kind string

const (
	All       Kind = "all"
	Favorites Kind = "favorites"
	ReadLater Kind = "readLater"
)

var ErrUnknownView = errors.New("unknown view")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", All:
		return All, nil
	case Favorites:
		return Favorites, nil
	case ReadLater, "read-later":
		return ReadLater, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Annotations is the read side of the annotation store.
type Annotations interface {
	IsFavorite(link string) bool
	IsReadLater(link string) bool
	IsRead(link string) bool
	// TagsFor returns the override list for link and whether one exists.
	TagsFor(link string) ([]string, bool)
}

// Entry is an item together with its annotations, ready for rendering.
type Entry struct {
	feed.Item
	Favorite  bool     `json:"favorite"`
	ReadLater bool     `json:"readLater"`
	Read      bool     `json:"read"`
	Tags      []string `json:"tags"`
	FeedTags  []string `json:"feedTags,omitempty"`
}

// Compose applies the view filter and then the tag filter. The input slice is
// not modified.
func Compose(items []feed.Item, kind Kind, selectedTag string, annotations Annotations) []feed.Item {
	result := make([]feed.Item, 0, len(items))

	for _, item := range items {
		switch kind {
		case Favorites:
			if item.Link == "" || !annotations.IsFavorite(item.Link) {
				continue
			}
		case ReadLater:
			if item.Link == "" || !annotations.IsReadLater(item.Link) {
				continue
			}
		}

		if selectedTag != "" && !slices.Contains(EffectiveTags(item, annotations), selectedTag) {
			continue
		}

		result = append(result, item)
	}

	return result
}

// EffectiveTags returns the stored override for the item's link if there is
// one, else the feed-native tags.
func EffectiveTags(item feed.Item, annotations Annotations) []string {
	if item.Link != "" {
		if tags, ok := annotations.TagsFor(item.Link); ok {
			return tags
		}
	}
	return item.Tags
}

// TagUniverse lists the distinct feed-native tags of items in sorted order.
// Overrides from the annotation store are not included.
func TagUniverse(items []feed.Item) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, tag := range item.Tags {
			if tag != "" {
				seen[tag] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

func Enrich(items []feed.Item, annotations Annotations) []Entry {
	entries := make([]Entry, len(items))
	for i, item := range items {
		tags := EffectiveTags(item, annotations)
		if tags == nil {
			tags = []string{}
		}

		entries[i] = Entry{
			Item:     item,
			Tags:     tags,
			FeedTags: item.Tags,
		}
		if item.Link != "" {
			entries[i].Favorite = annotations.IsFavorite(item.Link)
			entries[i].ReadLater = annotations.IsReadLater(item.Link)
			entries[i].Read = annotations.IsRead(item.Link)
		}
	}
	return entries
}
