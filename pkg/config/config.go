package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for agriqa.
// Values come from an optional YAML file; environment variables always override.
// Secrets (LLM_API_KEY) must only come from environment variables.
type Config struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`

	DBPath   string `yaml:"duckdb_path" env:"DUCKDB_PATH" env-default:"data/agri_climate.duckdb"`
	ReadOnly bool   `yaml:"duckdb_read_only" env:"DUCKDB_READ_ONLY" env-default:"false"`

	// Offline disables every external LLM call.
	Offline bool `yaml:"offline" env:"OFFLINE" env-default:"false"`

	// TemplateDir overrides the embedded template catalogue when set.
	TemplateDir string `yaml:"template_dir" env:"TEMPLATE_DIR" env-default:""`

	AuditPath string `yaml:"audit_log_path" env:"AUDIT_LOG_PATH" env-default:"logs/audit.csv"`

	CTEBinder CTEBinderMode `yaml:"cte_binder" env:"CTE_BINDER" env-default:"token"`
	CTEAlias  string        `yaml:"cte_alias" env:"CTE_ALIAS" env-default:"yr"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"console"`

	LLM LLMConfig `yaml:"llm"`

	Data DataConfig `yaml:"data"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig holds settings for the presentation API.
type HTTPConfig struct {
	// AskRateLimit is the sustained /ask rate per client in requests per second.
	AskRateLimit float64       `yaml:"ask_rate_limit" env:"ASK_RATE_LIMIT" env-default:"2"`
	AskBurst     int           `yaml:"ask_burst" env:"ASK_BURST" env-default:"5"`
	CORSOrigins  []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	// InvocationTTL is how long finished asynchronous runs stay retrievable.
	InvocationTTL time.Duration `yaml:"invocation_ttl" env:"INVOCATION_TTL" env-default:"1h"`
}

// LLMConfig holds settings for the text-generation collaborator.
type LLMConfig struct {
	Provider       LLMProvider   `yaml:"provider" env:"LLM_PROVIDER" env-default:"none"`
	Model          string        `yaml:"model" env:"LLM_MODEL" env-default:"gemini-1.5-flash"`
	FallbackModels []string      `yaml:"fallback_models" env:"LLM_FALLBACK_MODELS" env-separator:","`
	APIKey         string        `yaml:"-" env:"LLM_API_KEY"`
	BaseURL        string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Timeout        time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
	MaxRetries     int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"3"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" env:"LLM_RETRY_BACKOFF" env-default:"1s"`
	MaxTokens      int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"512"`
	Temperature    float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	// RateLimit caps calls per second across the process; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" env:"LLM_RATE_LIMIT" env-default:"1"`
}

// DataConfig locates the prepared dataset files used to build store views.
type DataConfig struct {
	Dir        string `yaml:"dir" env:"DATA_DIR" env-default:"data"`
	RainFile   string `yaml:"rain_file" env:"RAIN_FILE" env-default:"rain_state_year.parquet"`
	CropFile   string `yaml:"crop_file" env:"CROP_FILE" env-default:"crop_state_year.parquet"`
	SeasonFile string `yaml:"season_file" env:"SEASON_FILE" env-default:"season_crop_clean.csv"`
	// Refresh is a cron spec for re-creating the views; empty disables it.
	Refresh string `yaml:"refresh" env:"VIEWS_REFRESH" env-default:""`
}

// Path joins name onto the data directory unless name is already absolute.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// Load reads configuration from path (if it exists) with environment overrides.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	c.CTEBinder = CTEBinderMode(strings.ToLower(string(c.CTEBinder)))
	switch c.CTEBinder {
	case CTEBinderToken, CTEBinderAlias:
	default:
		return fmt.Errorf("unknown cte_binder %q (want %q or %q)", c.CTEBinder, CTEBinderToken, CTEBinderAlias)
	}
	if c.CTEBinder == CTEBinderAlias && strings.TrimSpace(c.CTEAlias) == "" {
		return fmt.Errorf("cte_alias is required when cte_binder is %q", CTEBinderAlias)
	}

	c.LLM.Provider = LLMProvider(strings.ToLower(string(c.LLM.Provider)))
	switch c.LLM.Provider {
	case LLMProviderNone, LLMProviderOpenAI, LLMProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}
	if c.LLM.RateLimit < 0 || c.HTTP.AskRateLimit < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.HTTP.AskRateLimit > 0 && c.HTTP.AskBurst < 1 {
		return fmt.Errorf("ask_burst must be at least 1 when ask_rate_limit is set")
	}
	return nil
}

// DSN returns the DuckDB data source name for the configured store.
func (c *Config) DSN() string {
	if c.ReadOnly && c.DBPath != "" && c.DBPath != ":memory:" {
		return c.DBPath + "?access_mode=read_only"
	}
	return c.DBPath
}
