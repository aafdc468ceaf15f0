package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const defaultWeatherAPIURL = "http://api.weatherapi.com/v1"

// WeatherAPIClient fetches observations from weatherapi.com
type WeatherAPIClient struct {
	logger     *zap.Logger
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewWeatherAPIClient creates a new WeatherAPI client
func NewWeatherAPIClient(apiKey string, timeout time.Duration, logger *zap.Logger) *WeatherAPIClient {
	return &WeatherAPIClient{
		logger:     logger.Named("weatherapi"),
		apiKey:     apiKey,
		baseURL:    defaultWeatherAPIURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
	}
}

// Name implements Source
func (c *WeatherAPIClient) Name() string { return "weatherapi" }

type weatherAPIResponse struct {
	Current struct {
		WindKph    float64  `json:"wind_kph"`
		WindDegree *float64 `json:"wind_degree"`
		PressureMb float64  `json:"pressure_mb"`
	} `json:"current"`
}

// Fetch implements Source
func (c *WeatherAPIClient) Fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	if c.apiKey == "" {
		return model.Observation{}, ErrNotConfigured
	}

	params := url.Values{
		"key": {c.apiKey},
		"q":   {fmt.Sprintf("%f,%f", lat, lon)},
		"aqi": {"no"},
	}

	var data weatherAPIResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/current.json?"+params.Encode(), &data); err != nil {
		return model.Observation{}, fmt.Errorf("weatherapi: %w", err)
	}

	obs := model.Observation{
		Timestamp:     c.clock.Now(),
		WindSpeed:     data.Current.WindKph,
		WindUnit:      model.SpeedKilometersPerHour,
		WindDirection: data.Current.WindDegree,
		Pressure:      data.Current.PressureMb,
		Geo:           model.Geo{Lat: lat, Lon: lon},
		Source:        c.Name(),
	}
	fillEstimates(&obs)
	return obs, nil
}

func getJSON(ctx context.Context, client *http.Client, fullURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
