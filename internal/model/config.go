package model

import "time"

// Config holds the complete runtime configuration
type Config struct {
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Search       SearchConfig      `yaml:"search" mapstructure:"search"`
	Authority    AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Memory       MemoryConfig      `yaml:"memory" mapstructure:"memory"`
	Session      SessionConfig     `yaml:"session" mapstructure:"session"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// HTTPConfig configures outbound page fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxTextChars  int           `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SearchConfig configures the evidence source provider
type SearchConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // serper, static
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
	StaticFile string `yaml:"static_file,omitempty" mapstructure:"static_file"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host -> tier, wins over everything
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches a regexp
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// LLMConfig configures the reasoning and embedding collaborator
type LLMConfig struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model          string  `yaml:"model" mapstructure:"model"`
	EmbeddingModel string  `yaml:"embedding_model,omitempty" mapstructure:"embedding_model"`
	APIKey         string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float32 `yaml:"temperature" mapstructure:"temperature"`
}

// MemoryConfig configures the similarity-searchable memory store
type MemoryConfig struct {
	Backend            string `yaml:"backend" mapstructure:"backend"` // local, firestore
	Dir                string `yaml:"dir" mapstructure:"dir"`
	TopK               int    `yaml:"top_k" mapstructure:"top_k"`
	ProjectID          string `yaml:"project_id,omitempty" mapstructure:"project_id"`
	DatabaseID         string `yaml:"database_id,omitempty" mapstructure:"database_id"`
	Collection         string `yaml:"collection" mapstructure:"collection"`
	EmbeddingDims      int    `yaml:"embedding_dims" mapstructure:"embedding_dims"`
	PersistConcurrency int    `yaml:"persist_concurrency" mapstructure:"persist_concurrency"`
}

// SessionConfig configures the conversation session table
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxSessions     int           `yaml:"max_sessions" mapstructure:"max_sessions"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// ConcurrencyConfig bounds the pipeline worker pools
type ConcurrencyConfig struct {
	FetchWorkers     int `yaml:"fetch_workers" mapstructure:"fetch_workers"`
	SummarizeWorkers int `yaml:"summarize_workers" mapstructure:"summarize_workers"`
	JudgeWorkers     int `yaml:"judge_workers" mapstructure:"judge_workers"`
	BatchWorkers     int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// RateLimitConfig configures per-domain fetch rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the fetched-page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8000",
			ShutdownTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:       10 * time.Second,
			UserAgent:     "Verity/0.1 (+https://github.com/ppiankov/verity)",
			MaxBodyBytes:  2_000_000,
			MaxTextChars:  4000,
			MaxAttempts:   3,
			RespectRobots: true,
		},
		Search: SearchConfig{
			Provider:   "serper",
			BaseURL:    "https://google.serper.dev",
			MaxResults: 5,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"doi.org",
				"pubmed.ncbi.nlm.nih.gov",
				"who.int",
				"europa.eu",
				"legislation.gov.uk",
				"nature.com",
				"science.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org",
				"britannica.com",
				"reuters.com",
				"apnews.com",
				"bbc.co.uk",
				"bbc.com",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/(statute|legislation|law)/`, Tier: "primary"},
			},
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "mistral",
			Timeout:     60,
			MaxTokens:   1000,
			Temperature: 0.3,
		},
		Memory: MemoryConfig{
			Backend:            "local",
			Dir:                "./memory/fact_checks",
			TopK:               3,
			Collection:         "fact_checks",
			EmbeddingDims:      256,
			PersistConcurrency: 4,
		},
		Session: SessionConfig{
			TTL:             2 * time.Hour,
			MaxSessions:     10_000,
			CleanupInterval: 10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers:     4,
			SummarizeWorkers: 2,
			JudgeWorkers:     2,
			BatchWorkers:     2,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".verity/cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
