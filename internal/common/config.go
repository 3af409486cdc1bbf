package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Scraper     ScraperConfig   `toml:"scraper"`
	RateLimit   RateLimitConfig `toml:"ratelimit"`
	Advisor     AdvisorConfig   `toml:"advisor"`
	Telemetry   TelemetryConfig `toml:"telemetry"`
	Boards      BoardsConfig    `toml:"boards"`
	Dedup       DedupConfig     `toml:"dedup"`
	Schedule    ScheduleConfig  `toml:"schedule"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig controls the task queue and worker pool
type QueueConfig struct {
	Capacity    int           `toml:"capacity"`     // Maximum queued tasks (default 1000)
	Workers     int           `toml:"workers"`      // Concurrent workers (default 5)
	MaxRetries  int           `toml:"max_retries"`  // Default per-task retry limit
	TaskTimeout time.Duration `toml:"task_timeout"` // Per-task wall clock (default 10m)
	DrainGrace  time.Duration `toml:"drain_grace"`  // Wait for workers on Stop (default 30s)
}

// ScraperConfig contains engine-level fetch and extraction settings
type ScraperConfig struct {
	UserAgents           []string      `toml:"user_agents"`             // Rotated user-agent pool
	RequestTimeout       time.Duration `toml:"request_timeout"`         // HTTP request timeout (default 30s)
	PageLoadTimeout      time.Duration `toml:"page_load_timeout"`       // Browser page load timeout (default 30s)
	SelectorWait         time.Duration `toml:"selector_wait"`           // Browser readiness wait (default 10s)
	ProbeTimeout         time.Duration `toml:"probe_timeout"`           // Reachability probe deadline (default 10s)
	MaxPages             int           `toml:"max_pages"`               // Max listing pages per board run (default 10)
	MaxPerHost           int           `toml:"max_per_host"`            // Max concurrent requests per host (default 4)
	MaxBodySize          int           `toml:"max_body_size"`           // Response body cap in bytes
	BrowserPoolSize      int           `toml:"browser_pool_size"`       // Headless browser instances (default 2)
	BrowserHeadless      bool          `toml:"browser_headless"`        // Run browser headless (default true)
	JavaScriptWaitTime   time.Duration `toml:"javascript_wait_time"`    // Fixed wait after navigation (default 3s)
	FollowRobotsTxt      bool          `toml:"follow_robots_txt"`       // Respect robots.txt rules
	GlobalRequestsPerSec float64       `toml:"global_requests_per_sec"` // Process-wide request budget (0 = unlimited)
}

// RateLimitConfig controls the per-host rate limiter
type RateLimitConfig struct {
	DefaultDelay time.Duration `toml:"default_delay"` // Baseline inter-request delay per host (default 2s)
	MaxDelay     time.Duration `toml:"max_delay"`     // Ceiling for adaptive widening (default 60s)
	Cooldown     time.Duration `toml:"cooldown"`      // Decay window without 429s (default 5m)
}

// AdvisorConfig selects and tunes the AI advisor provider
type AdvisorConfig struct {
	Provider        string        `toml:"provider"`          // "claude", "gemini", or "none"
	APIKey          string        `toml:"api_key"`           // Falls back to provider env var
	Model           string        `toml:"model"`             // Provider model name
	Timeout         time.Duration `toml:"timeout"`           // Per-call deadline (default 30s)
	HTMLSampleBytes int           `toml:"html_sample_bytes"` // HTML sample truncation (default 8192)
	CacheTTL        time.Duration `toml:"cache_ttl"`         // Board analysis TTL (default 24h)
}

// TelemetryConfig controls metric retention and alert thresholds
type TelemetryConfig struct {
	SeriesCapacity    int           `toml:"series_capacity"`     // Ring buffer points per series (default 1000)
	AlertDedupWindow  time.Duration `toml:"alert_dedup_window"`  // Same (source,title) suppression (default 5m)
	SuccessRateWarn   float64       `toml:"success_rate_warn"`   // default 0.8
	SuccessRateError  float64       `toml:"success_rate_error"`  // default 0.5
	ResponseTimeWarn  time.Duration `toml:"response_time_warn"`  // default 10s
	ResponseTimeError time.Duration `toml:"response_time_error"` // default 30s
	ErrorRateError    float64       `toml:"error_rate_error"`    // default 0.1
	ErrorRateCritical float64       `toml:"error_rate_critical"` // default 0.3
	QualityScoreWarn  float64       `toml:"quality_score_warn"`  // default 0.7
}

// BoardsConfig points at the board catalog directory
type BoardsConfig struct {
	Dir string `toml:"dir"` // Directory containing board definition files (TOML/YAML)
}

// DedupConfig tunes the duplicate detector
type DedupConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"` // default 0.85
	MaxFingerprints     int     `toml:"max_fingerprints"`     // default 10000
	EvictBatch          int     `toml:"evict_batch"`          // default 1000
}

// ScheduleConfig holds cron expressions for maintenance jobs
type ScheduleConfig struct {
	StaleTaskCheck string `toml:"stale_task_check"` // default "*/5 * * * *"
	AlertPrune     string `toml:"alert_prune"`      // default "0 * * * *"
	BadgerGC       string `toml:"badger_gc"`        // default "30 * * * *"
	BoardReanalyze string `toml:"board_reanalyze"`  // default "0 3 * * *"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration defaults applied before file/env overrides
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/venor",
			},
		},
		Queue: QueueConfig{
			Capacity:    1000,
			Workers:     5,
			MaxRetries:  3,
			TaskTimeout: 10 * time.Minute,
			DrainGrace:  30 * time.Second,
		},
		Scraper: ScraperConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			},
			RequestTimeout:     30 * time.Second,
			PageLoadTimeout:    30 * time.Second,
			SelectorWait:       10 * time.Second,
			ProbeTimeout:       10 * time.Second,
			MaxPages:           10,
			MaxPerHost:         4,
			MaxBodySize:        10 * 1024 * 1024,
			BrowserPoolSize:    2,
			BrowserHeadless:    true,
			JavaScriptWaitTime: 3 * time.Second,
			FollowRobotsTxt:    true,
		},
		RateLimit: RateLimitConfig{
			DefaultDelay: 2 * time.Second,
			MaxDelay:     60 * time.Second,
			Cooldown:     5 * time.Minute,
		},
		Advisor: AdvisorConfig{
			Provider:        "claude",
			Timeout:         30 * time.Second,
			HTMLSampleBytes: 8192,
			CacheTTL:        24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			SeriesCapacity:    1000,
			AlertDedupWindow:  5 * time.Minute,
			SuccessRateWarn:   0.8,
			SuccessRateError:  0.5,
			ResponseTimeWarn:  10 * time.Second,
			ResponseTimeError: 30 * time.Second,
			ErrorRateError:    0.1,
			ErrorRateCritical: 0.3,
			QualityScoreWarn:  0.7,
		},
		Boards: BoardsConfig{
			Dir: "./boards",
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.85,
			MaxFingerprints:     10000,
			EvictBatch:          1000,
		},
		Schedule: ScheduleConfig{
			StaleTaskCheck: "*/5 * * * *",
			AlertPrune:     "0 * * * *",
			BadgerGC:       "30 * * * *",
			BoardReanalyze: "0 3 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then the given TOML files
// in order (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies VENOR_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VENOR_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("VENOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("VENOR_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("VENOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("VENOR_BOARDS_DIR"); v != "" {
		config.Boards.Dir = v
	}
	if v := os.Getenv("VENOR_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Queue.Workers = n
		}
	}
	if v := os.Getenv("VENOR_ADVISOR_PROVIDER"); v != "" {
		config.Advisor.Provider = v
	}
	if v := os.Getenv("VENOR_ADVISOR_API_KEY"); v != "" {
		config.Advisor.APIKey = v
	}
	// Provider-native env vars as final fallback
	if config.Advisor.APIKey == "" {
		switch strings.ToLower(config.Advisor.Provider) {
		case "claude":
			config.Advisor.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			config.Advisor.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive, got %d", c.Queue.Workers)
	}
	if c.RateLimit.DefaultDelay < 0 {
		return fmt.Errorf("ratelimit default_delay must not be negative")
	}
	if c.RateLimit.MaxDelay < c.RateLimit.DefaultDelay {
		return fmt.Errorf("ratelimit max_delay must be >= default_delay")
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup similarity_threshold must be in (0, 1], got %f", c.Dedup.SimilarityThreshold)
	}
	switch strings.ToLower(c.Advisor.Provider) {
	case "claude", "gemini", "none", "":
	default:
		return fmt.Errorf("unknown advisor provider: %s", c.Advisor.Provider)
	}
	return nil
}
