package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Sessions    SessionsConfig   `toml:"sessions"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
	Worker      WorkerConfig     `toml:"worker"`
	Jobs        JobsConfig       `toml:"jobs"`
	LLM         LLMConfig        `toml:"llm"`
	Toolbag     ToolbagConfig    `toml:"toolbag"`
	Workflows   WorkflowsConfig  `toml:"workflows"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger    BadgerConfig    `toml:"badger"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ArtifactsConfig configures the blob store for crawl outputs
type ArtifactsConfig struct {
	Dir     string `toml:"dir"`      // Root directory for the local blob store
	BaseURL string `toml:"base_url"` // Prefix for retrieval URLs (e.g. "/artifacts")
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// CrawlerConfig contains browser and page-load tuning
type CrawlerConfig struct {
	UserAgent        string `toml:"user_agent"`         // User agent string for the browser context
	NavTimeout       string `toml:"nav_timeout"`        // Hard navigation timeout, e.g. "30s"
	SettleDelay      string `toml:"settle_delay"`       // Post-load stabilization wait, e.g. "2s"
	ScriptTimeout    string `toml:"script_timeout"`     // Default injected-script timeout, e.g. "30s"
	Headless         bool   `toml:"headless"`           // Run the browser headless (default true)
	WindowWidth      int    `toml:"window_width"`       // Viewport width
	WindowHeight     int    `toml:"window_height"`      // Viewport height
	DisableImages    bool   `toml:"disable_images"`     // Skip image loading for faster crawls
	SummaryMaxTokens int    `toml:"summary_max_tokens"` // Token cap for post-crawl summarization
}

// SessionsConfig tunes the browser session pool
type SessionsConfig struct {
	IdleTTL       string `toml:"idle_ttl"`       // Evict sessions idle longer than this (default "5m")
	SweepInterval string `toml:"sweep_interval"` // Idle sweeper period (default "60s")
	MaxSessions   int    `toml:"max_sessions"`   // Upper bound on concurrent live sessions (0 = unlimited)
}

// DispatcherConfig tunes sync/async routing
type DispatcherConfig struct {
	ThresholdSeconds float64 `toml:"threshold_seconds" validate:"gte=0"` // Estimates below this run inline (default 5)
	CheckURLPrefix   string  `toml:"check_url_prefix"`                   // Path prefix reported for job polling (default "/jobs")
}

// WorkerConfig tunes the async worker and batch fan-out
type WorkerConfig struct {
	PollInterval     string  `toml:"poll_interval"`                      // Pending-job poll period (default "1s")
	BatchConcurrency int     `toml:"batch_concurrency" validate:"gte=1"` // Parallel URLs per batch (default 5)
	URLTimeout       string  `toml:"url_timeout"`                        // Per-URL wall clock inside a batch (default "2m")
	HostRateLimit    float64 `toml:"host_rate_limit" validate:"gte=0"`   // Requests per second per host (0 = unlimited)
	HostRateBurst    int     `toml:"host_rate_burst" validate:"gte=0"`   // Burst size for the per-host limiter
}

// JobsConfig configures job retention and the janitor
type JobsConfig struct {
	Retention       string `toml:"retention"`        // Keep terminal jobs this long (default "168h")
	JanitorSchedule string `toml:"janitor_schedule"` // Cron spec for terminal-job GC (default "@hourly")
}

// LLMProvider identifies a model backend
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	DefaultProvider string       `toml:"default_provider"` // "claude" or "gemini"
	Claude          ClaudeConfig `toml:"claude"`
	Gemini          GeminiConfig `toml:"gemini"`
	MaxRetries      int          `toml:"max_retries" validate:"gte=0"`
	RetryBackoff    string       `toml:"retry_backoff"` // Initial backoff, e.g. "1s"
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// ToolbagConfig tunes the tool-dispatch engine
type ToolbagConfig struct {
	MaxIterations int            `toml:"max_iterations" validate:"gte=1"` // Model/tool loop cap (default 3)
	ToolLimits    map[string]int `toml:"tool_limits"`                     // Per-chain usage caps by tool name
}

// WorkflowsConfig configures recipe loading
type WorkflowsConfig struct {
	RecipesDir string `toml:"recipes_dir"` // Directory of YAML recipe files (optional)
}

// NewDefaultConfig returns the built-in defaults; files, env vars and flags
// layer on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/badger",
				ResetOnStartup: false,
			},
			Artifacts: ArtifactsConfig{
				Dir:     "./data/artifacts",
				BaseURL: "/artifacts",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Crawler: CrawlerConfig{
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NavTimeout:       "30s",
			SettleDelay:      "2s",
			ScriptTimeout:    "30s",
			Headless:         true,
			WindowWidth:      1280,
			WindowHeight:     900,
			SummaryMaxTokens: 1024,
		},
		Sessions: SessionsConfig{
			IdleTTL:       "5m",
			SweepInterval: "60s",
			MaxSessions:   0,
		},
		Dispatcher: DispatcherConfig{
			ThresholdSeconds: 5.0,
			CheckURLPrefix:   "/jobs",
		},
		Worker: WorkerConfig{
			PollInterval:     "1s",
			BatchConcurrency: 5,
			URLTimeout:       "2m",
			HostRateLimit:    2.0,
			HostRateBurst:    4,
		},
		Jobs: JobsConfig{
			Retention:       "168h",
			JanitorSchedule: "@hourly",
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 4096,
			},
			Gemini: GeminiConfig{
				Model:     "gemini-2.0-flash",
				MaxTokens: 4096,
			},
			MaxRetries:   3,
			RetryBackoff: "1s",
		},
		Toolbag: ToolbagConfig{
			MaxIterations: 3,
			ToolLimits: map[string]int{
				"start_session":      1,
				"generate_report":    1,
				"analyze_content":    3,
				"capture_screenshot": 10,
			},
		},
		Workflows: WorkflowsConfig{},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("COLLIGO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("COLLIGO_ARTIFACTS_DIR"); dir != "" {
		config.Storage.Artifacts.Dir = dir
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if ttl := os.Getenv("COLLIGO_SESSION_IDLE_TTL"); ttl != "" {
		config.Sessions.IdleTTL = ttl
	}

	if threshold := os.Getenv("COLLIGO_DISPATCH_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Dispatcher.ThresholdSeconds = t
		}
	}

	if concurrency := os.Getenv("COLLIGO_BATCH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Worker.BatchConcurrency = c
		}
	}

	if key := os.Getenv("COLLIGO_CLAUDE_API_KEY"); key != "" {
		config.LLM.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.Claude.APIKey == "" {
		config.LLM.Claude.APIKey = key
	}
	if key := os.Getenv("COLLIGO_GEMINI_API_KEY"); key != "" {
		config.LLM.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.LLM.Gemini.APIKey == "" {
		config.LLM.Gemini.APIKey = key
	}

	if dir := os.Getenv("COLLIGO_RECIPES_DIR"); dir != "" {
		config.Workflows.RecipesDir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, dataDir string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if dataDir != "" {
		config.Storage.Badger.Path = dataDir + "/badger"
		config.Storage.Artifacts.Dir = dataDir + "/artifacts"
	}
}

// Validate checks structural constraints and duration strings.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"crawler.nav_timeout":     c.Crawler.NavTimeout,
		"crawler.settle_delay":    c.Crawler.SettleDelay,
		"crawler.script_timeout":  c.Crawler.ScriptTimeout,
		"sessions.idle_ttl":       c.Sessions.IdleTTL,
		"sessions.sweep_interval": c.Sessions.SweepInterval,
		"worker.poll_interval":    c.Worker.PollInterval,
		"worker.url_timeout":      c.Worker.URLTimeout,
		"jobs.retention":          c.Jobs.Retention,
		"llm.retry_backoff":       c.LLM.RetryBackoff,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	return nil
}

// Duration parses a duration string from config, falling back when empty or
// malformed. Validate has already rejected malformed values at load time;
// the fallback covers structs built by hand in tests.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
