// Package openweathermap implements the pollution lookup and the city search
// collaborators against the OpenWeatherMap APIs.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/internal/provider/resilience"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API host.
	DefaultBaseURL = "https://api.openweathermap.org"

	// DefaultSearchLimit is the number of geocoding results requested.
	DefaultSearchLimit = 5
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API host (optional, defaults to OpenWeatherMap).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Now stamps readings (default: time.Now).
	Now func() time.Time
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchPollution fetches the current pollution reading at coord.
func (c *Client) FetchPollution(ctx context.Context, coord geo.Coordinate) (*airquality.PollutantReading, error) {
	const op = "openweathermap.FetchPollution"

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lng, 'f', 6, 64))
	q.Set("appid", c.apiKey)

	var resp pollutionResponse
	if err := c.getJSON(ctx, "/data/2.5/air_pollution", q, &resp); err != nil {
		return nil, airquality.ClassifyError(ctx, op, err)
	}

	if len(resp.List) == 0 {
		return nil, &airquality.NetworkError{Op: op, Err: airquality.ErrNoReading}
	}

	return c.toReading(&resp.List[0]), nil
}

// SearchCities looks up cities by name through the direct geocoding API.
func (c *Client) SearchCities(ctx context.Context, query string, limit int) ([]city.ExternalCity, error) {
	const op = "openweathermap.SearchCities"

	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("appid", c.apiKey)

	var resp []geocodingResult
	if err := c.getJSON(ctx, "/geo/1.0/direct", q, &resp); err != nil {
		return nil, airquality.ClassifyError(ctx, op, err)
	}

	out := make([]city.ExternalCity, 0, len(resp))
	for _, r := range resp {
		out = append(out, city.ExternalCity{
			Name:    r.Name,
			Lat:     r.Lat,
			Lon:     r.Lon,
			Country: r.Country,
			State:   r.State,
		})
	}

	c.logger.Debug().Str("query", query).Int("results", len(out)).Msg("city search")

	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// toReading converts an OpenWeatherMap entry to the domain model.
func (c *Client) toReading(e *pollutionEntry) *airquality.PollutantReading {
	capturedAt := c.now()
	if e.Dt > 0 {
		capturedAt = time.Unix(e.Dt, 0).UTC()
	}

	return &airquality.PollutantReading{
		CO:            e.Components.CO,
		NO:            e.Components.NO,
		NO2:           e.Components.NO2,
		O3:            e.Components.O3,
		SO2:           e.Components.SO2,
		PM25:          e.Components.PM25,
		PM10:          e.Components.PM10,
		NH3:           e.Components.NH3,
		CategoryIndex: e.Main.AQI,
		CapturedAt:    capturedAt,
	}
}

type pollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []pollutionEntry `json:"list"`
}

type pollutionEntry struct {
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components struct {
		CO   *float64 `json:"co"`
		NO   *float64 `json:"no"`
		NO2  *float64 `json:"no2"`
		O3   *float64 `json:"o3"`
		SO2  *float64 `json:"so2"`
		PM25 *float64 `json:"pm2_5"`
		PM10 *float64 `json:"pm10"`
		NH3  *float64 `json:"nh3"`
	} `json:"components"`
	Dt int64 `json:"dt"`
}

type geocodingResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}
