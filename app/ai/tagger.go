package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	tagContextLimit = 500
	maxTags         = 3
	maxTagLength    = 20
)

const tagPrompt = `Analyze the following text and extract 2-3 specific, relevant tags (e.g., Technology, Finance, AI, React, Health). 
    Return ONLY a JSON array of strings, like ["Tag1", "Tag2"]. Do not add any other text.
    
    Text:
    %s
    `

var fallbackCleaner = strings.NewReplacer("[", "", "]", "", `"`, "")

// GenerateTags asks the model for up to three short tags describing an article.
func (c *Client) GenerateTags(ctx context.Context, model, title, content string) ([]string, error) {
	response, err := c.Generate(ctx, model, BuildTagPrompt(title, content))
	if err != nil {
		return nil, err
	}

	return ParseTags(response), nil
}

func BuildTagPrompt(title, content string) string {
	return fmt.Sprintf(tagPrompt, truncate(title+"\n"+content, tagContextLimit))
}

// ParseTags extracts tags from a model response. Code fences are stripped and
// the body is read as a JSON array; anything else is split on commas.
func ParseTags(response string) []string {
	cleaned := strings.TrimSpace(response)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "```json"), "```")
	case strings.HasPrefix(cleaned, "```"):
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "```"), "```")
	}

	var tags []string
	if err := json.Unmarshal([]byte(cleaned), &tags); err != nil {
		tags = nil
		for _, part := range strings.Split(cleaned, ",") {
			tags = append(tags, fallbackCleaner.Replace(strings.TrimSpace(part)))
		}
	}

	return NormalizeTags(tags)
}

// NormalizeTags trims tags, drops empty and overlong ones and keeps at most three.
func NormalizeTags(tags []string) []string {
	result := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(norm.NFC.String(tag))
		length := utf8.RuneCountInString(tag)
		if length == 0 || length >= maxTagLength {
			continue
		}
		result = append(result, tag)
		if len(result) == maxTags {
			break
		}
	}
	return result
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
