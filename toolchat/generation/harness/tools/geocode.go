package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/rs/zerolog"
)

// ErrNoLocations is returned when a place name has no matches.
var ErrNoLocations = errors.New("no locations found for this city")

// Location is one geocoding match.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// GeocoderOptions configures the Nominatim client.
type GeocoderOptions struct {
	BaseURL   string
	UserAgent string // Nominatim's usage policy requires an identifying agent
	Limit     int
	Client    *http.Client
	Cache     ports.Cache // optional
	TTL       int         // cache TTL in seconds
	Logger    zerolog.Logger
}

// Geocoder resolves place names to coordinates with Nominatim.
type Geocoder struct {
	opts GeocoderOptions
}

func NewGeocoder(opts GeocoderOptions) *Geocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = internal.DefaultGeocodingURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = internal.DefaultGeocodingAgent
	}
	if opts.Limit <= 0 {
		opts.Limit = internal.DefaultGeocodingLimit
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	opts.Logger = opts.Logger.With().Str("component", "geocoder").Logger()
	return &Geocoder{opts: opts}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search returns up to Limit matches for name. Zero matches is
// ErrNoLocations.
func (g *Geocoder) Search(ctx context.Context, name string) ([]Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("city name is required")
	}

	key := "geocode:" + strings.ToLower(name)
	if g.opts.Cache != nil {
		if cached, ok := g.opts.Cache.Get(ctx, key); ok {
			var locations []Location
			if err := json.Unmarshal(cached, &locations); err == nil {
				g.opts.Logger.Debug().Str("query", name).Msg("Geocoding cache hit")
				return locations, nil
			}
		}
	}

	locations, err := g.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	if g.opts.Cache != nil {
		if encoded, err := json.Marshal(locations); err == nil {
			if err := g.opts.Cache.Set(ctx, key, encoded, g.opts.TTL); err != nil {
				g.opts.Logger.Warn().Err(err).Msg("Failed to cache geocoding result")
			}
		}
	}
	return locations, nil
}

func (g *Geocoder) fetch(ctx context.Context, name string) ([]Location, error) {
	u, err := url.Parse(g.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoding URL: %w", err)
	}
	q := u.Query()
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(g.opts.Limit))
	q.Set("accept-language", "en")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)
	req.Header.Set("Accept-Charset", "utf-8")

	resp, err := g.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching city coordinates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("error fetching city coordinates: %s", resp.Status)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrNoLocations
	}

	locations := make([]Location, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q for %s: %w", p.Lat, p.DisplayName, err)
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q for %s: %w", p.Lon, p.DisplayName, err)
		}
		locations = append(locations, Location{Latitude: lat, Longitude: lon, DisplayName: p.DisplayName})
	}
	return locations, nil
}
