package store

import (
	"context"

	"github.com/lysyi3m/rss-deck/app/feed"
)

const DefaultNamespace = "rss-reader-storage"

// Backend persists one opaque record per namespace.
type Backend interface {
	// Load returns nil data when nothing was saved under namespace yet.
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, data []byte) error
}

// Snapshot is the persisted layout of the store.
type Snapshot struct {
	FeedURLs      []string            `json:"feedUrls"`
	Favorites     []string            `json:"favorites"`
	ReadLater     []string            `json:"readLater"`
	History       []string            `json:"history"`
	Tags          map[string][]string `json:"tags"`
	SelectedModel *string             `json:"selectedModel"`
	Feeds         []feed.Feed         `json:"feeds"`
	AllItems      []feed.Item         `json:"allItems"`
}

type ServiceStatus string

const (
	StatusRunning  ServiceStatus = "running"
	StatusStopped  ServiceStatus = "stopped"
	StatusChecking ServiceStatus = "checking"
)
