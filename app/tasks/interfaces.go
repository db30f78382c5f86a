package tasks

import (
	"context"

	"github.com/lysyi3m/rss-deck/app/deck"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/view"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Example usage:
//
//	scheduler := NewScheduler(deck, workerCount, refreshInterval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshFeedsTask(deck))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Lookup(id string) (Record, bool)
}

// Refresher runs one aggregation cycle.
type Refresher interface {
	Refresh(ctx context.Context) (feed.Result, error)
}

// Analyzer tags the untagged items of a view.
type Analyzer interface {
	Analyze(ctx context.Context, kind view.Kind, tag string) (deck.AnalyzeResult, error)
}

var (
	_ Refresher = (*deck.Deck)(nil)
	_ Analyzer  = (*deck.Deck)(nil)
)
