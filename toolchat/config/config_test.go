package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))

	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "LLM_API_KEY", "LLM_PROVIDER", "LLM_MODEL"} {
		suite.T().Setenv(key, "")
		os.Unsetenv(key)
	}
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "gemini", cfg.LLM.Provider)
	assert.Equal(suite.T(), internal.DefaultGeminiModel, cfg.LLM.Model)
	assert.InDelta(suite.T(), 0.9, cfg.LLM.Temperature, 1e-6)
	assert.Equal(suite.T(), int32(2048), cfg.LLM.MaxOutputTokens)
	assert.Equal(suite.T(), int32(1), cfg.LLM.CandidateCount)
	assert.Equal(suite.T(), "BLOCK_NONE", cfg.LLM.SafetyThreshold)
	assert.Equal(suite.T(), 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(suite.T(), 30*time.Second, cfg.Harness.ToolTimeout)
	assert.Equal(suite.T(), time.Second, cfg.Harness.RateLimitRefillRate)
	assert.Equal(suite.T(), internal.DefaultWeatherURL, cfg.Tools.Weather.BaseURL)
	assert.Equal(suite.T(), internal.DefaultKnowledgeBasePath, cfg.Tools.KnowledgeBase.Path)
	assert.Equal(suite.T(), "WeatherApp/1.0", cfg.Tools.Geocoding.UserAgent)
	assert.Equal(suite.T(), 5, cfg.Tools.Geocoding.Limit)
	assert.Equal(suite.T(), "file", cfg.Transcript.Backend)
	assert.Equal(suite.T(), "chat_log.txt", cfg.Transcript.Path)
	assert.Empty(suite.T(), cfg.LLM.APIKey)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
llm:
  provider: openai
  temperature: 0.2
  base_url: http://localhost:8080/v1
harness:
  tool_timeout: 5s
tools:
  allowed: [get_weather]
transcript:
  backend: none
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "openai", cfg.LLM.Provider)
	assert.Equal(suite.T(), internal.DefaultOpenAIModel, cfg.LLM.Model)
	assert.InDelta(suite.T(), 0.2, cfg.LLM.Temperature, 1e-6)
	assert.Equal(suite.T(), "http://localhost:8080/v1", cfg.LLM.BaseURL)
	assert.Equal(suite.T(), 5*time.Second, cfg.Harness.ToolTimeout)
	assert.Equal(suite.T(), []string{"get_weather"}, cfg.Tools.Allowed)
	assert.Equal(suite.T(), "none", cfg.Transcript.Backend)
}

func (suite *ConfigTestSuite) TestProviderKeyFromEnvironment() {
	suite.T().Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "gem-key", cfg.LLM.APIKey)

	suite.T().Setenv("GOOGLE_API_KEY", "google-key")
	cfg, err = LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "google-key", cfg.LLM.APIKey, "GOOGLE_API_KEY takes precedence")
}

func (suite *ConfigTestSuite) TestDotEnvFile() {
	dotenv := "OPENAI_API_KEY=sk-from-file\nLLM_PROVIDER=openai\n"
	require.NoError(suite.T(), os.WriteFile(filepath.Join(suite.tempDir, ".env"), []byte(dotenv), 0o600))

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "openai", cfg.LLM.Provider)
	assert.Equal(suite.T(), "sk-from-file", cfg.LLM.APIKey)
	assert.NoError(suite.T(), cfg.Validate())
}

func (suite *ConfigTestSuite) TestProviderKeyEnvironmentOverridesDotEnv() {
	dotenv := "GOOGLE_API_KEY=from-file\nGEMINI_API_KEY=gem-from-file\n"
	require.NoError(suite.T(), os.WriteFile(filepath.Join(suite.tempDir, ".env"), []byte(dotenv), 0o600))

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "from-file", cfg.LLM.APIKey)

	suite.T().Setenv("GOOGLE_API_KEY", "from-env")
	cfg, err = LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "from-env", cfg.LLM.APIKey, "bound environment variable wins over .env")
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	malformedContent := `
llm:
  provider: gemini
  invalid_yaml: [unclosed bracket
`
	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(malformedContent), 0o644))

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestAppConfigGlobal() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), cfg.LLM.Model, AppConfig.LLM.Model)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LLM:        LLMConfig{Provider: "gemini", APIKey: "k", CandidateCount: 1, MaxOutputTokens: 2048},
			Transcript: TranscriptConfig{Backend: "file"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, "llm.provider"},
		{"multiple candidates", func(c *Config) { c.LLM.CandidateCount = 2 }, "llm.candidate_count"},
		{"no output budget", func(c *Config) { c.LLM.MaxOutputTokens = 0 }, "llm.max_output_tokens"},
		{"unknown backend", func(c *Config) { c.Transcript.Backend = "s3" }, "transcript.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.key == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		cfg, err := LoadConfig("")
		if err != nil {
			b.Fatal(err)
		}
		_ = cfg
	}
}
