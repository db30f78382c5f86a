package deck

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-deck/app/ai"
	"github.com/lysyi3m/rss-deck/app/view"
)

const (
	analyzeBatchSize = 5
	reportItemLimit  = 20
)

// ErrAssistantDisabled is returned by Analyze and Report on a deck built
// without an assistant.
var ErrAssistantDisabled = errors.New("AI assistant is not configured")

// Assistant generates tags and briefings.
type Assistant interface {
	GenerateTags(ctx context.Context, model, title, content string) ([]string, error)
	Summarize(ctx context.Context, model string, phrases []string) (string, error)
}

var _ Assistant = (*ai.Client)(nil)

type AnalyzeResult struct {
	Tagged    int `json:"tagged"`
	Attempted int `json:"attempted"`
}

// Analyze tags up to five untagged items of a view, one at a time, with the
// selected model. Items without a link are skipped but still count towards
// the batch. A failing item does not stop the batch.
func (d *Deck) Analyze(ctx context.Context, kind view.Kind, tag string) (AnalyzeResult, error) {
	var result AnalyzeResult
	if d.assistant == nil {
		return result, ErrAssistantDisabled
	}

	var batch []int
	items := d.Compose(kind, tag)
	for i, item := range items {
		if len(view.EffectiveTags(item, d.store)) > 0 {
			continue
		}
		batch = append(batch, i)
		if len(batch) == analyzeBatchSize {
			break
		}
	}

	model := d.store.SelectedModel()

	var lastErr error
	for _, i := range batch {
		item := items[i]
		if item.Link == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Attempted++
		tags, err := d.assistant.GenerateTags(ctx, model, item.Title, cmp.Or(item.ContentSnippet, item.Content))
		if err != nil {
			slog.Warn("Tagging failed", "link", item.Link, "error", err)
			lastErr = err
			continue
		}

		if err := d.store.SetTags(ctx, item.Link, tags); err != nil {
			return result, fmt.Errorf("failed to store tags: %w", err)
		}
		result.Tagged++
	}

	if result.Tagged == 0 && errors.Is(lastErr, ai.ErrServiceUnavailable) {
		return result, lastErr
	}

	slog.Info("Analysis completed", "view", string(kind), "tag", tag, "tagged", result.Tagged, "attempted", result.Attempted)

	return result, nil
}

// Report summarizes the first twenty items of a view.
func (d *Deck) Report(ctx context.Context, kind view.Kind, tag string) (string, error) {
	if d.assistant == nil {
		return "", ErrAssistantDisabled
	}

	items := d.Compose(kind, tag)
	if len(items) > reportItemLimit {
		items = items[:reportItemLimit]
	}

	phrases := make([]string, len(items))
	for i, item := range items {
		phrases[i] = fmt.Sprintf("%s: %s", item.Title, item.ContentSnippet)
	}

	return d.assistant.Summarize(ctx, d.store.SelectedModel(), phrases)
}
