package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const (
	defaultCountryCode = "91"
	defaultTwilioURL   = "https://api.twilio.com"
)

// SMSConfig holds settings for both SMS providers
type SMSConfig struct {
	Provider           string        `mapstructure:"provider"`
	URL                string        `mapstructure:"url"`
	APIKey             string        `mapstructure:"api_key"`
	Sender             string        `mapstructure:"sender"`
	DefaultCountryCode string        `mapstructure:"default_country_code"`
	TwilioAccountSID   string        `mapstructure:"twilio_account_sid"`
	TwilioAuthToken    string        `mapstructure:"twilio_auth_token"`
	TwilioFrom         string        `mapstructure:"twilio_from"`
	TwilioBaseURL      string        `mapstructure:"twilio_base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// NewSMSSender returns the sender for cfg.Provider ("gateway" or "twilio")
func NewSMSSender(cfg SMSConfig, logger *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gateway":
		return NewGatewaySMSSender(cfg, logger), nil
	case "twilio":
		return NewTwilioSMSSender(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// GatewaySMSSender posts SMS to a generic JSON gateway
type GatewaySMSSender struct {
	logger     *zap.Logger
	cfg        SMSConfig
	httpClient *http.Client
}

// NewGatewaySMSSender creates a new SMS gateway sender
func NewGatewaySMSSender(cfg SMSConfig, logger *zap.Logger) *GatewaySMSSender {
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = defaultCountryCode
	}
	return &GatewaySMSSender{
		logger:     logger.Named("sms-gateway"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Channel implements Sender
func (s *GatewaySMSSender) Channel() model.Channel { return model.ChannelSMS }

// Send implements Sender
func (s *GatewaySMSSender) Send(ctx context.Context, destination string, msg model.RenderedMessage) error {
	if s.cfg.URL == "" || s.cfg.APIKey == "" {
		return fmt.Errorf("%w: sms gateway url or api key missing", ErrNotConfigured)
	}
	to, err := NormalizePhone(destination, s.cfg.DefaultCountryCode)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	payload := map[string]string{
		"api_key": s.cfg.APIKey,
		"to":      to,
		"message": msg.Body,
	}
	if s.cfg.Sender != "" {
		payload["sender"] = s.cfg.Sender
	}
	if err := postJSON(ctx, s.httpClient, s.cfg.URL, payload, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return err
	}

	s.logger.Debug("SMS sent", zap.String("to", Mask(to)))
	return nil
}

// TwilioSMSSender sends SMS through the Twilio Messages API
type TwilioSMSSender struct {
	logger     *zap.Logger
	cfg        SMSConfig
	httpClient *http.Client
}

// NewTwilioSMSSender creates a new Twilio sender
func NewTwilioSMSSender(cfg SMSConfig, logger *zap.Logger) *TwilioSMSSender {
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = defaultCountryCode
	}
	if cfg.TwilioBaseURL == "" {
		cfg.TwilioBaseURL = defaultTwilioURL
	}
	return &TwilioSMSSender{
		logger:     logger.Named("sms-twilio"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Channel implements Sender
func (s *TwilioSMSSender) Channel() model.Channel { return model.ChannelSMS }

// Send implements Sender
func (s *TwilioSMSSender) Send(ctx context.Context, destination string, msg model.RenderedMessage) error {
	if s.cfg.TwilioAccountSID == "" || s.cfg.TwilioAuthToken == "" || s.cfg.TwilioFrom == "" {
		return fmt.Errorf("%w: twilio credentials missing", ErrNotConfigured)
	}
	to, err := NormalizePhone(destination, s.cfg.DefaultCountryCode)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.TwilioBaseURL, "/"), url.PathEscape(s.cfg.TwilioAccountSID))
	form := url.Values{
		"To":   {to},
		"From": {s.cfg.TwilioFrom},
		"Body": {msg.Body},
	}
	if err := postForm(ctx, s.httpClient, endpoint, s.cfg.TwilioAccountSID, s.cfg.TwilioAuthToken, form, http.StatusCreated); err != nil {
		return err
	}

	s.logger.Debug("Twilio SMS sent", zap.String("to", Mask(to)))
	return nil
}
