package feed

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadSubscriptions(t *testing.T) {
	path := writeFile(t, t.TempDir(), "feeds.yml", `feeds:
  - url: https://a.test/rss
    name: A
  - url: " https://b.test/rss "
  - url: https://a.test/rss
`)

	urls, err := LoadSubscriptions(path)
	if err != nil {
		t.Fatalf("LoadSubscriptions failed: %v", err)
	}

	expected := []string{"https://a.test/rss", "https://b.test/rss"}
	if !reflect.DeepEqual(urls, expected) {
		t.Errorf("Expected %v, got %v", expected, urls)
	}
}

func TestLoadSubscriptionsMissingFile(t *testing.T) {
	urls, err := LoadSubscriptions(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Errorf("Expected no error for missing file, got %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("Expected no URLs, got %v", urls)
	}

	urls, err = LoadSubscriptions("")
	if err != nil || urls != nil {
		t.Errorf("Expected nil result for empty path, got %v, %v", urls, err)
	}
}

func TestLoadSubscriptionsInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "feeds: [unclosed"},
		{"bad scheme", "feeds:\n  - url: ftp://a.test/rss\n"},
		{"empty url", "feeds:\n  - name: nothing\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "feeds.yml", tt.content)
			if _, err := LoadSubscriptions(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/rss", false},
		{"http://example.com/feed.xml", false},
		{"", true},
		{"example.com/rss", true},
		{"file:///etc/passwd", true},
		{"https://", true},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q): expected error=%t, got %v", tt.url, tt.wantErr, err)
		}
	}
}
