package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/rs/zerolog"
)

const (
	WeatherToolName        = "get_weather"
	weatherToolDescription = "Get current temperature for provided coordinates in celsius."
)

// WeatherArgs are the parameters of get_weather.
type WeatherArgs struct {
	Latitude  float64 `json:"latitude" jsonschema:"description=Latitude of the location in decimal degrees"`
	Longitude float64 `json:"longitude" jsonschema:"description=Longitude of the location in decimal degrees"`
}

// WeatherReport is the result of get_weather. A field is nil when the
// upstream response did not include the measurement.
type WeatherReport struct {
	TemperatureCelsius    *float64 `json:"temperature_2m_celsius,omitempty"`
	TemperatureFahrenheit *float64 `json:"temperature_2m_fahrenheit,omitempty"`
	WindSpeed             *float64 `json:"wind_speed_10m,omitempty"`
}

// WeatherOptions configures the Open-Meteo client.
type WeatherOptions struct {
	BaseURL string
	Client  *http.Client
	Logger  zerolog.Logger
}

// WeatherTool reports current conditions from Open-Meteo.
type WeatherTool struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	schema  []byte
	decoder *ArgumentDecoder
}

var weatherSchema = ReflectSchema(&WeatherArgs{})

func NewWeatherTool(opts WeatherOptions) *WeatherTool {
	if opts.BaseURL == "" {
		opts.BaseURL = internal.DefaultWeatherURL
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &WeatherTool{
		baseURL: opts.BaseURL,
		client:  opts.Client,
		logger:  opts.Logger.With().Str("tool", WeatherToolName).Logger(),
		schema:  weatherSchema,
		decoder: MustArgumentDecoder(weatherSchema),
	}
}

func (t *WeatherTool) Name() string        { return WeatherToolName }
func (t *WeatherTool) Description() string { return weatherToolDescription }
func (t *WeatherTool) Schema() []byte      { return t.schema }

// Invoke decodes the coordinates and fetches the current weather.
func (t *WeatherTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	var params WeatherArgs
	if err := t.decoder.Decode(args, &params); err != nil {
		return nil, err
	}
	return t.Current(ctx, params.Latitude, params.Longitude)
}

// Current fetches temperature and wind speed for a coordinate pair.
func (t *WeatherTool) Current(ctx context.Context, latitude, longitude float64) (*WeatherReport, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid weather URL: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,wind_speed_10m")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	t.logger.Debug().Float64("latitude", latitude).Float64("longitude", longitude).Msg("Fetching current weather")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("weather service returned %s", resp.Status)
	}

	var body struct {
		Current map[string]json.RawMessage `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}
	if body.Current == nil {
		return nil, fmt.Errorf("weather response has no current conditions")
	}

	report := &WeatherReport{}
	if celsius, ok, err := number(body.Current, "temperature_2m"); err != nil {
		return nil, err
	} else if ok {
		report.TemperatureCelsius = ptr(round1(celsius))
		report.TemperatureFahrenheit = ptr(round1(CelsiusToFahrenheit(celsius)))
	}
	if wind, ok, err := number(body.Current, "wind_speed_10m"); err != nil {
		return nil, err
	} else if ok {
		report.WindSpeed = ptr(round1(wind))
	}
	return report, nil
}

// String renders the report the way the CLI prints it.
func (r *WeatherReport) String() string {
	var parts []string
	if r.TemperatureCelsius != nil {
		parts = append(parts, fmt.Sprintf("%.1f°C", *r.TemperatureCelsius))
	}
	if r.TemperatureFahrenheit != nil {
		parts = append(parts, fmt.Sprintf("%.1f°F", *r.TemperatureFahrenheit))
	}
	if r.WindSpeed != nil {
		parts = append(parts, fmt.Sprintf("wind %.1f km/h", *r.WindSpeed))
	}
	if len(parts) == 0 {
		return "no data"
	}
	return strings.Join(parts, ", ")
}

// CelsiusToFahrenheit converts without rounding.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func ptr(v float64) *float64 { return &v }

// number reads a numeric field; null counts as absent.
func number(fields map[string]json.RawMessage, key string) (float64, bool, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("weather field %s is not a number: %w", key, err)
	}
	return v, true, nil
}

var _ ports.Tool = (*WeatherTool)(nil)
