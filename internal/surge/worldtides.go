package surge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultWorldTidesURL = "https://www.worldtides.info"

// WorldTidesClient implements TideProvider using the WorldTides v2 API
type WorldTidesClient struct {
	logger     *zap.Logger
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewWorldTidesClient creates a new WorldTides client
func NewWorldTidesClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *WorldTidesClient {
	if baseURL == "" {
		baseURL = defaultWorldTidesURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WorldTidesClient{
		logger:  logger.Named("worldtides"),
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock: clockwork.NewRealClock(),
	}
}

type worldTidesResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error,omitempty"`
	Heights []struct {
		Dt     int64   `json:"dt"`
		Height float64 `json:"height"`
	} `json:"heights"`
}

// CurrentHeight returns the predicted height sample closest to now
func (c *WorldTidesClient) CurrentHeight(ctx context.Context, lat, lon float64) (float64, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("%w: api key not configured", ErrTideUnavailable)
	}

	now := c.clock.Now()
	params := url.Values{
		"heights": {""},
		"key":     {c.apiKey},
		"lat":     {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":     {strconv.FormatFloat(lon, 'f', 6, 64)},
		"start":   {strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)},
		"length":  {"7200"},
		"step":    {"1800"},
		"datum":   {"CD"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTideUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: status %d: %s", ErrTideUnavailable, resp.StatusCode, body)
	}

	var data worldTidesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("%w: failed to decode response: %v", ErrTideUnavailable, err)
	}
	if len(data.Heights) == 0 {
		return 0, fmt.Errorf("%w: no heights in response", ErrTideUnavailable)
	}

	target := now.Unix()
	best := data.Heights[0]
	for _, h := range data.Heights[1:] {
		if math.Abs(float64(h.Dt-target)) < math.Abs(float64(best.Dt-target)) {
			best = h
		}
	}

	c.logger.Debug("Tide height fetched",
		zap.Float64("height", best.Height),
		zap.Int64("dt", best.Dt))

	return best.Height, nil
}
