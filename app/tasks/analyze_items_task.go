package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-deck/app/view"
)

type AnalyzeItemsTask struct {
	Task
	Kind     view.Kind
	Tag      string
	analyzer Analyzer
}

// NewAnalyzeItemsTask creates a tagging run over a view. It is not retried:
// a failed batch is re-requested by the user.
func NewAnalyzeItemsTask(analyzer Analyzer, kind view.Kind, tag string) *AnalyzeItemsTask {
	task := NewTask(TaskTypeAnalyzeItems, string(kind))
	task.MaxRetries = 0

	return &AnalyzeItemsTask{
		Task:     task,
		Kind:     kind,
		Tag:      tag,
		analyzer: analyzer,
	}
}

func (t *AnalyzeItemsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.analyzer.Analyze(ctx, t.Kind, t.Tag)
	if err != nil {
		return fmt.Errorf("failed to analyze items: %w", err)
	}

	slog.Info("Task completed",
		"type", "AnalyzeItems",
		"id", t.ID,
		"view", string(t.Kind),
		"tag", t.Tag,
		"duration", t.GetDuration(),
		"tagged", result.Tagged,
		"attempted", result.Attempted)

	return nil
}
