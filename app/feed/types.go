package feed

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Extension keys for source-specific item fields
const (
	ExtGUID            = "guid"
	ExtAuthor          = "author"
	ExtEnclosureURL    = "enclosure_url"
	ExtEnclosureType   = "enclosure_type"
	ExtEnclosureLength = "enclosure_length"
)

const failedToLoadPrefix = "Failed to load: "

// Feed is a normalized feed document as served by the feed proxy.
type Feed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	FeedURL     string `json:"feedUrl,omitempty"`
	Items       []Item `json:"items"`
}

// Item is one article. Link is the identity used for annotations.
type Item struct {
	Title          string            `json:"title,omitempty"`
	Link           string            `json:"link,omitempty"`
	PubDate        string            `json:"pubDate,omitempty"`
	ISODate        string            `json:"isoDate,omitempty"`
	Content        string            `json:"content,omitempty"`
	ContentSnippet string            `json:"contentSnippet,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	FeedTitle      string            `json:"feedTitle,omitempty"`
	FeedURL        string            `json:"feedUrl,omitempty"`
	Extensions     map[string]string `json:"extensions,omitempty"`
}

// PublishedAt returns the ISO date if it parses (RFC 3339 or any other ISO 8601
// form), else the raw publish date if it parses, else the Unix epoch.
func (i Item) PublishedAt() time.Time {
	if s := strings.TrimSpace(i.ISODate); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		// Other ISO 8601 shapes, e.g. date only
		if t, err := dateparse.ParseAny(s); err == nil {
			return t
		}
	}
	if s := strings.TrimSpace(i.PubDate); s != "" {
		if t, err := dateparse.ParseAny(s); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// FetchError records a feed that contributed nothing to an aggregation cycle.
type FetchError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

func newFetchError(feedURL string) FetchError {
	return FetchError{URL: feedURL, Message: failedToLoadPrefix + feedURL}
}

// Result is the outcome of one aggregation cycle.
type Result struct {
	Feeds  []Feed       `json:"feeds"`
	Items  []Item       `json:"items"`
	Errors []FetchError `json:"errors"`
}
