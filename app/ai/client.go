package ai

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrServiceUnavailable means the Ollama server could not be reached.
var ErrServiceUnavailable = errors.New("Ollama is not running. Check Settings.")

const defaultSpawnWait = 2 * time.Second

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []model `json:"models"`
}

type model struct {
	Name string `json:"name"`
}

// Status is what the Ollama server reports about itself.
type Status struct {
	Running bool     `json:"running"`
	Models  []string `json:"models"`
}

// Client talks to a local Ollama server.
type Client struct {
	httpClient   *http.Client
	host         string
	defaultModel string
	command      string
	limiter      *rate.Limiter
	spawnWait    time.Duration
}

// NewClient creates a client for the Ollama server at host. Generation calls
// are paced to requestsPerSecond; zero or less disables pacing.
func NewClient(httpClient *http.Client, host, defaultModel, command string, requestsPerSecond float64) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Client{
		httpClient:   httpClient,
		host:         strings.TrimRight(host, "/"),
		defaultModel: defaultModel,
		command:      command,
		limiter:      rate.NewLimiter(limit, 1),
		spawnWait:    defaultSpawnWait,
	}
}

func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// Generate runs a non-streaming completion of prompt. An empty model selects
// the client's default model.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Model:  cmp.Or(model, c.defaultModel),
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		slog.Warn("Failed to call Ollama", "host", c.host, "error", err)
		return "", ErrServiceUnavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama API error: %d %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var generated generateResponse
	if err := json.Unmarshal(data, &generated); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return generated.Response, nil
}

// Status lists the installed models. Any failure reads as not running.
func (c *Client) Status(ctx context.Context) Status {
	stopped := Status{Running: false, Models: []string{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return stopped
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Ollama connection failed", "host", c.host, "error", err)
		return stopped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stopped
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return stopped
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}

	return Status{Running: true, Models: models}
}

// Spawn starts "<command> serve" in the background and gives it a moment to
// come up. It does not report whether the server actually started.
func (c *Client) Spawn(ctx context.Context) error {
	cmd := exec.Command(c.command, "serve")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn %s: %w", c.command, err)
	}

	slog.Info("Spawned Ollama", "command", c.command, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Ollama process exited", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.spawnWait):
		return nil
	}
}
