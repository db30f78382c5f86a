package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/rss-deck.db" description:"SQLite database file"`
	Namespace string `long:"namespace" env:"STORAGE_NAMESPACE" default:"rss-reader-storage" description:"Name of the persisted state record"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	FeedsFile    string `long:"feeds-file" env:"FEEDS_FILE" description:"YAML file with subscriptions to import on start (optional)"`
	FeedProxyURL string `long:"feed-proxy-url" env:"FEED_PROXY_URL" description:"Fetch feeds through this proxy endpoint instead of directly (optional)"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	RefreshInterval int `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"0" description:"Minutes between background refreshes, 0 to refresh only on start and on demand"`

	// AI service
	OllamaHost    string  `long:"ollama-host" env:"OLLAMA_HOST" default:"http://127.0.0.1:11434" description:"Ollama server address"`
	OllamaModel   string  `long:"ollama-model" env:"OLLAMA_MODEL" default:"llama3" description:"Model used when none is selected"`
	OllamaCommand string  `long:"ollama-command" env:"OLLAMA_COMMAND" default:"ollama" description:"Ollama executable used to spawn the service"`
	AIRateLimit   float64 `long:"ai-rate" env:"AI_RATE_LIMIT" default:"2" description:"Maximum generate requests per second"`
	AITimeout     int     `long:"ai-timeout" env:"AI_TIMEOUT" default:"120" description:"Timeout for one AI request in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Deck/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		Namespace:       raw.Namespace,
		Port:            raw.Port,
		FeedsFile:       raw.FeedsFile,
		FeedProxyURL:    raw.FeedProxyURL,
		FetchTimeout:    raw.FetchTimeout,
		WorkerCount:     raw.WorkerCount,
		APIAccessKey:    raw.APIAccessKey,
		RefreshInterval: raw.RefreshInterval,
		OllamaHost:      raw.OllamaHost,
		OllamaModel:     raw.OllamaModel,
		OllamaCommand:   raw.OllamaCommand,
		AIRateLimit:     raw.AIRateLimit,
		AITimeout:       raw.AITimeout,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
