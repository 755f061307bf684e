package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	App        AppSettings      `mapstructure:"app"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Harness    HarnessConfig    `mapstructure:"harness"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
}

// AppSettings stores process-level settings.
type AppSettings struct {
	LogLevel  string `mapstructure:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `mapstructure:"log_format"` // "console", "json"
}

// LLMConfig stores language model configurations.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"` // "gemini", "openai"
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"` // OpenAI-compatible endpoint override
	Temperature       float32       `mapstructure:"temperature"`
	MaxOutputTokens   int32         `mapstructure:"max_output_tokens"`
	CandidateCount    int32         `mapstructure:"candidate_count"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	SafetyThreshold   string        `mapstructure:"safety_threshold"` // applied to every harm category
	Timeout           time.Duration `mapstructure:"timeout"`          // per gateway call
}

// HarnessConfig stores orchestration loop configurations.
type HarnessConfig struct {
	// Rate limiting
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"`

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"`

	ToolTimeout time.Duration `mapstructure:"tool_timeout"` // per tool invocation
}

// ToolsConfig stores builtin tool configurations.
type ToolsConfig struct {
	Allowed       []string            `mapstructure:"allowed"` // empty registers every builtin
	Weather       WeatherConfig       `mapstructure:"weather"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Geocoding     GeocodingConfig     `mapstructure:"geocoding"`
}

type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KnowledgeBaseConfig struct {
	Path string `mapstructure:"path"`
}

// GeocodingConfig stores Nominatim lookup settings.
type GeocodingConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Limit           int           `mapstructure:"limit"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheCapacity   int           `mapstructure:"cache_capacity"`
	CacheTTLSeconds int           `mapstructure:"cache_ttl_seconds"`
}

// TranscriptConfig selects where conversation turns are persisted.
type TranscriptConfig struct {
	Backend string `mapstructure:"backend"` // "file", "libsql", "none"
	Path    string `mapstructure:"path"`    // file backend
	DSN     string `mapstructure:"dsn"`     // libsql backend
}

// ConfigurationError reports a setting the application cannot start without.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

var AppConfig Config

var (
	providers          = []string{"gemini", "openai"}
	transcriptBackends = []string{"file", "libsql", "none"}
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. llm.api_key becomes LLM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, name := range providerKeyVars {
		if err := v.BindEnv(providerKeyPath(name), name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	if err := mergeDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(v, cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}

	AppConfig = cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// LLM defaults (Gemini 2.0 flash, permissive safety)
	v.SetDefault("llm.provider", internal.DefaultProvider)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", internal.DefaultTemperature)
	v.SetDefault("llm.max_output_tokens", internal.DefaultMaxOutput)
	v.SetDefault("llm.candidate_count", 1)
	v.SetDefault("llm.system_instruction", "")
	v.SetDefault("llm.safety_threshold", internal.DefaultSafetyLevel)
	v.SetDefault("llm.timeout", "60s")

	// Harness defaults
	v.SetDefault("harness.rate_limit_enabled", true)
	v.SetDefault("harness.rate_limit_capacity", 10)
	v.SetDefault("harness.rate_limit_refill_rate", "1s")
	v.SetDefault("harness.enable_tracing", true)
	v.SetDefault("harness.tool_timeout", "30s")

	// Tool defaults
	v.SetDefault("tools.allowed", []string{}) // Empty means allow all
	v.SetDefault("tools.weather.base_url", internal.DefaultWeatherURL)
	v.SetDefault("tools.weather.timeout", "10s")
	v.SetDefault("tools.knowledge_base.path", internal.DefaultKnowledgeBasePath)
	v.SetDefault("tools.geocoding.base_url", internal.DefaultGeocodingURL)
	v.SetDefault("tools.geocoding.user_agent", internal.DefaultGeocodingAgent)
	v.SetDefault("tools.geocoding.limit", internal.DefaultGeocodingLimit)
	v.SetDefault("tools.geocoding.timeout", "10s")
	v.SetDefault("tools.geocoding.cache_capacity", 256)
	v.SetDefault("tools.geocoding.cache_ttl_seconds", 86400) // 1 day

	// Transcript defaults
	v.SetDefault("transcript.backend", internal.DefaultTranscriptBackend)
	v.SetDefault("transcript.path", internal.DefaultTranscriptFile)
	v.SetDefault("transcript.dsn", internal.DefaultDatabaseDSN)
}

// mergeDotEnv folds KEY=value pairs from a dotenv file into v. A variable
// maps to a setting the same way AutomaticEnv does (LLM_MODEL is llm.model).
// Provider key variables become defaults under keys.* for providerKey.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ReplaceAll(key, ".", "_")
		if _, set := os.LookupEnv(strings.ToUpper(name)); set {
			continue // the real environment wins
		}
		if env.IsSet(name) {
			v.Set(key, env.GetString(name))
		}
	}
	for _, name := range providerKeyVars {
		if lower := strings.ToLower(name); env.IsSet(lower) {
			// A default, so a bound environment variable still wins.
			v.SetDefault(providerKeyPath(name), env.GetString(lower))
		}
	}
	return nil
}

// providerKeyVars are the environment variables that may carry an API key.
var providerKeyVars = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"}

func providerKeyPath(name string) string {
	return "keys." + strings.ToLower(name)
}

func providerKey(v *viper.Viper, provider string) string {
	var names []string
	switch provider {
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	default:
		names = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	}
	for _, name := range names {
		if value := v.GetString(providerKeyPath(name)); value != "" {
			return value
		}
	}
	return ""
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return internal.DefaultOpenAIModel
	}
	return internal.DefaultGeminiModel
}

// Validate reports the first setting that prevents startup.
func (c *Config) Validate() error {
	if !slices.Contains(providers, c.LLM.Provider) {
		return &ConfigurationError{Key: "llm.provider", Reason: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}
	if c.LLM.APIKey == "" {
		return &ConfigurationError{Key: "llm.api_key", Reason: "missing API key for " + c.LLM.Provider}
	}
	if c.LLM.CandidateCount != 1 {
		return &ConfigurationError{Key: "llm.candidate_count", Reason: "only a single candidate is supported"}
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return &ConfigurationError{Key: "llm.max_output_tokens", Reason: "must be positive"}
	}
	if !slices.Contains(transcriptBackends, c.Transcript.Backend) {
		return &ConfigurationError{Key: "transcript.backend", Reason: fmt.Sprintf("unsupported backend %q", c.Transcript.Backend)}
	}
	return nil
}
