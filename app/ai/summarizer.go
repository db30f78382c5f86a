package ai

import (
	"context"
	"fmt"
	"strings"
)

const summaryPhraseLimit = 20

const summaryPrompt = `You are a helpful news assistant. Below is a list of recent headlines and summaries. 
    Create a concise "Daily Briefing" report in Markdown format. 
    Group related stories together. Highlight key trends.
    
    Headlines:
    %s
    `

// Summarize turns the first twenty phrases into a Markdown briefing.
func (c *Client) Summarize(ctx context.Context, model string, phrases []string) (string, error) {
	return c.Generate(ctx, model, BuildSummaryPrompt(phrases))
}

func BuildSummaryPrompt(phrases []string) string {
	if len(phrases) > summaryPhraseLimit {
		phrases = phrases[:summaryPhraseLimit]
	}

	lines := make([]string, len(phrases))
	for i, phrase := range phrases {
		lines[i] = fmt.Sprintf("%d. %s", i+1, phrase)
	}

	return fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n"))
}
