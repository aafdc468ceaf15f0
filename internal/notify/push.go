package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// PushConfig holds push gateway settings
type PushConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PushSender posts notifications to a push gateway
type PushSender struct {
	logger     *zap.Logger
	cfg        PushConfig
	httpClient *http.Client
}

// NewPushSender creates a new push sender
func NewPushSender(cfg PushConfig, logger *zap.Logger) *PushSender {
	return &PushSender{
		logger:     logger.Named("push"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Channel implements Sender
func (s *PushSender) Channel() model.Channel { return model.ChannelPush }

type pushPayload struct {
	APIKey      string `json:"api_key"`
	DeviceToken string `json:"device_token"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Priority    string `json:"priority"`
}

// Send implements Sender
func (s *PushSender) Send(ctx context.Context, destination string, msg model.RenderedMessage) error {
	if s.cfg.URL == "" || s.cfg.APIKey == "" {
		return fmt.Errorf("%w: push gateway url or api key missing", ErrNotConfigured)
	}
	if err := ValidateDeviceToken(destination); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	payload := pushPayload{
		APIKey:      s.cfg.APIKey,
		DeviceToken: destination,
		Title:       msg.Subject,
		Body:        msg.Body,
		Priority:    "high",
	}
	if err := postJSON(ctx, s.httpClient, s.cfg.URL, payload, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return err
	}

	s.logger.Debug("Push sent", zap.String("device", Mask(destination)))
	return nil
}
