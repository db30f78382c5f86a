package api

import (
	"context"

	"github.com/lysyi3m/rss-deck/app/ai"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/deck"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, items []feed.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// AssistantInterface is the AI service as seen by the HTTP layer.
type AssistantInterface interface {
	deck.Assistant
	Status(ctx context.Context) ai.Status
	Spawn(ctx context.Context) error
	DefaultModel() string
}

var _ AssistantInterface = (*ai.Client)(nil)

// RunListerInterface lists recent aggregation cycles.
type RunListerInterface interface {
	Recent(ctx context.Context, limit int) ([]database.RefreshRun, error)
}

var _ RunListerInterface = (*database.RunRepository)(nil)

type Handler struct {
	deck      *deck.Deck
	gateway   feed.Gateway
	generator GeneratorInterface
	assistant AssistantInterface
	scheduler tasks.TaskSchedulerInterface
	runs      RunListerInterface
}

type linkRequest struct {
	Link string `json:"link"`
}

type tagsRequest struct {
	Link string   `json:"link"`
	Tags []string `json:"tags"`
}

type subscriptionRequest struct {
	URL string `json:"url" binding:"required"`
}

type viewRequest struct {
	View string `json:"view"`
	Tag  string `json:"tag"`
}

type tagRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Model   string `json:"model"`
}

type summaryRequest struct {
	Phrases []string `json:"phrases"`
	Model   string   `json:"model"`
}

type configRequest struct {
	Command string `json:"command"`
	Model   string `json:"model"`
}

type modelRequest struct {
	Model string `json:"model" binding:"required"`
}
