package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// Parser is safe for concurrent use. gofeed parsers keep per-document state,
// so every Run gets its own.
type Parser struct {
	newGofeedParser func() *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		newGofeedParser: gofeed.NewParser,
	}
}

func (p *Parser) Run(data []byte) (*Feed, error) {
	parsed, err := p.newGofeedParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	feed := &Feed{
		Title:       parsed.Title,
		Description: parsed.Description,
		Link:        parsed.Link,
		Items:       make([]Item, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		feed.Items = append(feed.Items, p.normalizeItem(item))
	}

	return feed, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		Title:   item.Title,
		Link:    item.Link,
		PubDate: cmp.Or(item.Published, item.Updated),
		Content: cmp.Or(item.Content, item.Description),
		Tags:    p.normalizeCategories(item.Categories),
	}

	if published := cmp.Or(item.PublishedParsed, item.UpdatedParsed); published != nil {
		normalized.ISODate = published.UTC().Format(time.RFC3339)
	}

	normalized.ContentSnippet = p.snippet(normalized.Content)

	ext := make(map[string]string)
	if item.GUID != "" {
		ext[ExtGUID] = item.GUID
	}
	if author := p.author(item); author != "" {
		ext[ExtAuthor] = author
	}
	// RSS 2.0 allows only one enclosure per item
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		if enclosure.URL != "" {
			ext[ExtEnclosureURL] = enclosure.URL
			ext[ExtEnclosureType] = enclosure.Type
			ext[ExtEnclosureLength] = enclosure.Length
		}
	}
	if len(ext) > 0 {
		normalized.Extensions = ext
	}

	return normalized
}

// snippet reduces HTML content to its collapsed text.
func (p *Parser) snippet(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (p *Parser) normalizeCategories(categories []string) []string {
	var tags []string
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" || slices.Contains(tags, category) {
			continue
		}
		tags = append(tags, category)
	}
	return tags
}

func (p *Parser) author(item *gofeed.Item) string {
	person := item.Author
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		person = item.Authors[0]
	}
	if person == nil {
		return ""
	}

	name := strings.TrimSpace(person.Name)
	email := strings.TrimSpace(person.Email)

	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s (%s)", email, name)
	case name != "":
		return name
	default:
		return email
	}
}
