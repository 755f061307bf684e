package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/adapters"
)

func weatherServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCelsiusToFahrenheit(t *testing.T) {
	assert.Equal(t, 32.0, round1(CelsiusToFahrenheit(0)))
	assert.Equal(t, 212.0, round1(CelsiusToFahrenheit(100)))
	assert.Equal(t, -40.0, round1(CelsiusToFahrenheit(-40)))
	assert.Equal(t, 72.1, round1(CelsiusToFahrenheit(22.3)))
}

func TestWeatherTool_Invoke(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    WeatherReport
		wantErr string
	}{
		{
			name:   "all fields",
			body:   `{"current":{"temperature_2m":20,"wind_speed_10m":5}}`,
			status: http.StatusOK,
			want:   WeatherReport{TemperatureCelsius: ptr(20), TemperatureFahrenheit: ptr(68), WindSpeed: ptr(5)},
		},
		{
			name:   "rounding",
			body:   `{"current":{"temperature_2m":21.46,"wind_speed_10m":3.04}}`,
			status: http.StatusOK,
			want:   WeatherReport{TemperatureCelsius: ptr(21.5), TemperatureFahrenheit: ptr(70.6), WindSpeed: ptr(3)},
		},
		{
			name:   "wind only",
			body:   `{"current":{"wind_speed_10m":12.25}}`,
			status: http.StatusOK,
			want:   WeatherReport{WindSpeed: ptr(12.3)},
		},
		{
			name:    "no current block",
			body:    `{"error":true}`,
			status:  http.StatusOK,
			wantErr: "no current conditions",
		},
		{
			name:    "upstream failure",
			body:    `{"reason":"bad"}`,
			status:  http.StatusBadRequest,
			wantErr: "400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := weatherServer(t, tt.body, tt.status)
			tool := NewWeatherTool(WeatherOptions{BaseURL: server.URL, Client: server.Client(), Logger: zerolog.Nop()})

			out, err := tool.Invoke(context.Background(), json.RawMessage(`{"latitude":17.385,"longitude":78.4867}`))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, &tt.want, out)
		})
	}
}

func TestWeatherTool_OmitsMissingFields(t *testing.T) {
	server := weatherServer(t, `{"current":{"temperature_2m":0}}`, http.StatusOK)
	tool := NewWeatherTool(WeatherOptions{BaseURL: server.URL, Client: server.Client()})

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"latitude":0,"longitude":0}`))
	require.NoError(t, err)

	encoded, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature_2m_celsius":0,"temperature_2m_fahrenheit":32}`, string(encoded))
	assert.Equal(t, "0.0°C, 32.0°F", out.(*WeatherReport).String())
}

func TestWeatherTool_RejectsBadArguments(t *testing.T) {
	tool := NewWeatherTool(WeatherOptions{})

	_, err := tool.Invoke(context.Background(), json.RawMessage(`{"latitude":10}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "longitude")

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{"latitude":"north","longitude":1}`))
	assert.Error(t, err)
}

func TestWeatherTool_Schema(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(NewWeatherTool(WeatherOptions{}).Schema(), &schema))

	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"latitude", "longitude"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "number", props["latitude"].(map[string]any)["type"])
	assert.NotEmpty(t, props["longitude"].(map[string]any)["description"])
}

func TestKnowledgeBaseTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge_base.json")
	tool := NewKnowledgeBaseTool(path, zerolog.Nop())
	args := json.RawMessage(`{"query":"Will Fanniemae aquire an ARM loan?"}`)

	_, err := tool.Invoke(context.Background(), args)
	assert.ErrorIs(t, err, ErrKnowledgeBaseNotFound)

	require.NoError(t, os.WriteFile(path, []byte(`{"records": [`), 0o644))
	_, err = tool.Invoke(context.Background(), args)
	assert.ErrorIs(t, err, ErrKnowledgeBaseInvalid)

	require.NoError(t, os.WriteFile(path, []byte(`{"records":[{"question":"ARM?","answer":"Yes"}]}`), 0o644))
	first, err := tool.Invoke(context.Background(), args)
	require.NoError(t, err)
	second, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"something else"}`))
	require.NoError(t, err)

	assert.Equal(t, first, second, "the query does not filter the document")
	assert.Equal(t, map[string]any{"records": []any{map[string]any{"question": "ARM?", "answer": "Yes"}}}, first)

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err, "query is required")
}

func TestGeocoder_Search(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "WeatherApp/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "utf-8", r.Header.Get("Accept-Charset"))
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "en", q.Get("accept-language"))

		switch q.Get("q") {
		case "Springfield":
			fmt.Fprint(w, `[{"lat":"39.7990","lon":"-89.6440","display_name":"Springfield, Illinois"},{"lat":"42.1015","lon":"-72.5898","display_name":"Springfield, Massachusetts"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	geocoder := NewGeocoder(GeocoderOptions{
		BaseURL: server.URL,
		Client:  server.Client(),
		Cache:   adapters.NewLRUCache(8),
		TTL:     60,
	})

	locations, err := geocoder.Search(context.Background(), "Springfield")
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, Location{Latitude: 39.799, Longitude: -89.644, DisplayName: "Springfield, Illinois"}, locations[0])

	again, err := geocoder.Search(context.Background(), " springfield ")
	require.NoError(t, err)
	assert.Equal(t, locations, again)
	assert.Equal(t, int32(1), hits.Load(), "second lookup is served from cache")

	_, err = geocoder.Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNoLocations)

	_, err = geocoder.Search(context.Background(), "  ")
	assert.Error(t, err)
}

func TestToolDefaults_UseSharedConstants(t *testing.T) {
	weather := NewWeatherTool(WeatherOptions{})
	assert.Equal(t, internal.DefaultWeatherURL, weather.baseURL)
	assert.Same(t, http.DefaultClient, weather.client)

	geocoder := NewGeocoder(GeocoderOptions{})
	assert.Equal(t, internal.DefaultGeocodingURL, geocoder.opts.BaseURL)
	assert.Equal(t, internal.DefaultGeocodingAgent, geocoder.opts.UserAgent)
	assert.Equal(t, internal.DefaultGeocodingLimit, geocoder.opts.Limit)
}
