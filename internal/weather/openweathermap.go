package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const defaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherMapClient fetches observations from openweathermap.org
type OpenWeatherMapClient struct {
	logger     *zap.Logger
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewOpenWeatherMapClient creates a new OpenWeatherMap client
func NewOpenWeatherMapClient(apiKey string, timeout time.Duration, logger *zap.Logger) *OpenWeatherMapClient {
	return &OpenWeatherMapClient{
		logger:     logger.Named("openweathermap"),
		apiKey:     apiKey,
		baseURL:    defaultOpenWeatherMapURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
	}
}

// Name implements Source
func (c *OpenWeatherMapClient) Name() string { return "openweathermap" }

type openWeatherMapResponse struct {
	Wind struct {
		Speed float64  `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Main struct {
		Pressure float64 `json:"pressure"`
	} `json:"main"`
}

// Fetch implements Source
func (c *OpenWeatherMapClient) Fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	if c.apiKey == "" {
		return model.Observation{}, ErrNotConfigured
	}

	params := url.Values{
		"appid": {c.apiKey},
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"units": {"metric"},
	}

	var data openWeatherMapResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/weather?"+params.Encode(), &data); err != nil {
		return model.Observation{}, fmt.Errorf("openweathermap: %w", err)
	}

	obs := model.Observation{
		Timestamp:     c.clock.Now(),
		WindSpeed:     data.Wind.Speed,
		WindUnit:      model.SpeedMetersPerSecond,
		WindDirection: data.Wind.Deg,
		Pressure:      data.Main.Pressure,
		Geo:           model.Geo{Lat: lat, Lon: lon},
		Source:        c.Name(),
	}
	fillEstimates(&obs)
	return obs, nil
}
