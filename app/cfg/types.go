package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath    string
	Namespace string

	// Application configuration
	Port         string
	FeedsFile    string
	FeedProxyURL string
	FetchTimeout int
	WorkerCount  int
	APIAccessKey string

	RefreshInterval int

	// AI service
	OllamaHost    string
	OllamaModel   string
	OllamaCommand string
	AIRateLimit   float64
	AITimeout     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) GetFetchTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Cfg) GetRefreshInterval() time.Duration {
	if c.RefreshInterval <= 0 {
		return 0
	}
	return time.Duration(c.RefreshInterval) * time.Minute
}

func (c *Cfg) GetAITimeout() time.Duration {
	if c.AITimeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.AITimeout) * time.Second
}
