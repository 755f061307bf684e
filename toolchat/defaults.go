// Package toolchat holds process-wide defaults shared by the config loader,
// the CLI and the harness factory.
package toolchat

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName = "toolchat"

	DefaultProvider      = "gemini"
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultOpenAIModel   = "gpt-3.5-turbo"
	DefaultTemperature   = 0.9
	DefaultMaxOutput     = 2048
	DefaultSafetyLevel   = "BLOCK_NONE"
	DefaultSystemPersona = "You are a witty and insightful assistant who loves helping people learn and explore ideas. Keep the tone friendly, clever, and curious."

	DefaultWeatherURL     = "https://api.open-meteo.com/v1/forecast"
	DefaultGeocodingURL   = "https://nominatim.openstreetmap.org/search"
	DefaultGeocodingAgent = "WeatherApp/1.0"
	DefaultGeocodingLimit = 5

	DefaultTranscriptBackend = "file"
	DefaultTranscriptFile    = "chat_log.txt"
)

var (
	DefaultConfigPath        = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultKnowledgeBasePath = filepath.Join("data", "knowledge_base.json")
	DefaultDatabaseDSN       = "file:" + filepath.Join(DefaultConfigPath, "transcripts.db")
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}
