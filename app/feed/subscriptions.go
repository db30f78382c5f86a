package feed

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubscriptionsFile is the YAML seed of subscriptions imported on start:
//
//	feeds:
//	  - url: https://example.com/rss
//	    name: Example
type SubscriptionsFile struct {
	Feeds []SubscriptionEntry `yaml:"feeds"`
}

type SubscriptionEntry struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// LoadSubscriptions reads the seed file and returns its URLs in file order
// without duplicates. A missing file yields no URLs.
func LoadSubscriptions(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file SubscriptionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	urls := make([]string, 0, len(file.Feeds))
	for i, entry := range file.Feeds {
		feedURL := strings.TrimSpace(entry.URL)
		if err := ValidateURL(feedURL); err != nil {
			return nil, fmt.Errorf("invalid feed at index %d: %w", i, err)
		}
		if slices.Contains(urls, feedURL) {
			continue
		}
		urls = append(urls, feedURL)
	}

	return urls, nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(feedURL string) error {
	if feedURL == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(feedURL)
	if err != nil {
		return fmt.Errorf("failed to parse feed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("feed URL %q has no host", feedURL)
	}

	return nil
}
