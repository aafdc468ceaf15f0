package cyclone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// ClassifierClient calls a remote model-serving endpoint
type ClassifierClient struct {
	logger     *zap.Logger
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClassifierClient creates a new classifier client
func NewClassifierClient(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *ClassifierClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClassifierClient{
		logger:   logger.Named("classifier"),
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type classifierResponse struct {
	Classification   string             `json:"classification"`
	Probability      *float64           `json:"probability"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
}

// Predict implements Estimator
func (c *ClassifierClient) Predict(ctx context.Context, f Features) (model.CycloneEstimate, error) {
	if c.endpoint == "" {
		return model.CycloneEstimate{}, ErrNotConfigured
	}

	body, err := json.Marshal(f)
	if err != nil {
		return model.CycloneEstimate{}, fmt.Errorf("failed to marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.CycloneEstimate{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CycloneEstimate{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.CycloneEstimate{}, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, msg)
	}

	var out classifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.CycloneEstimate{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if out.Classification == "" {
		return model.CycloneEstimate{}, fmt.Errorf("%w: missing classification", ErrBadResponse)
	}

	class := ParseClass(out.Classification)
	var probs map[model.CycloneClass]float64
	if len(out.AllProbabilities) > 0 {
		probs = make(map[model.CycloneClass]float64, len(out.AllProbabilities))
		for label, p := range out.AllProbabilities {
			probs[ParseClass(label)] += p
		}
	}

	var probability float64
	switch {
	case out.Probability != nil:
		probability = *out.Probability
	case probs != nil:
		probability = probs[class]
	default:
		return model.CycloneEstimate{}, fmt.Errorf("%w: missing probability", ErrBadResponse)
	}

	est := NewEstimate(class, probability, probs, "classifier")
	c.logger.Debug("Cyclone classified",
		zap.String("classification", string(est.Classification)),
		zap.Float64("probability", est.Probability))

	return est, nil
}
