package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type RefreshFeedsTask struct {
	Task
	refresher Refresher
}

func NewRefreshFeedsTask(refresher Refresher) *RefreshFeedsTask {
	return &RefreshFeedsTask{
		Task:      NewTask(TaskTypeRefreshFeeds, "subscriptions"),
		refresher: refresher,
	}
}

func (t *RefreshFeedsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh feeds: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshFeeds",
		"id", t.ID,
		"duration", t.GetDuration(),
		"items", len(result.Items),
		"failed", len(result.Errors))

	return nil
}
