package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Gateway retrieves one feed URL and returns it normalized.
type Gateway interface {
	Fetch(ctx context.Context, feedURL string) (*Feed, error)
}

var (
	_ Gateway = (*HTTPGateway)(nil)
	_ Gateway = (*ProxyGateway)(nil)
)

// HTTPGateway downloads feeds itself and parses them with gofeed.
type HTTPGateway struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewHTTPGateway(httpClient *http.Client, parser *Parser, userAgent string) *HTTPGateway {
	return &HTTPGateway{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
	}
}

func (g *HTTPGateway) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	data, err := get(ctx, g.httpClient, feedURL, g.userAgent)
	if err != nil {
		return nil, err
	}

	feed, err := g.parser.Run(data)
	if err != nil {
		return nil, err
	}

	return feed, nil
}

// ProxyGateway asks a feed proxy (GET <proxy>?url=<feed>) for normalized feed JSON.
type ProxyGateway struct {
	httpClient *http.Client
	proxyURL   string
	userAgent  string
}

func NewProxyGateway(httpClient *http.Client, proxyURL, userAgent string) *ProxyGateway {
	return &ProxyGateway{
		httpClient: httpClient,
		proxyURL:   proxyURL,
		userAgent:  userAgent,
	}
}

func (g *ProxyGateway) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	u, err := url.Parse(g.proxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
	}
	query := u.Query()
	query.Set("url", feedURL)
	u.RawQuery = query.Encode()

	data, err := get(ctx, g.httpClient, u.String(), g.userAgent)
	if err != nil {
		return nil, err
	}

	var feed Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode proxy response: %w", err)
	}

	return &feed, nil
}

func get(ctx context.Context, httpClient *http.Client, target, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
