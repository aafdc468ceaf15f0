package weather

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// Chain tries sources in order and returns the first observation obtained
type Chain struct {
	logger  *zap.Logger
	sources []Source
}

// NewChain creates a new source chain
func NewChain(logger *zap.Logger, sources ...Source) *Chain {
	return &Chain{
		logger:  logger.Named("weather"),
		sources: sources,
	}
}

// Name implements Source
func (c *Chain) Name() string { return "chain" }

// Fetch implements Source
func (c *Chain) Fetch(ctx context.Context, lat, lon float64) (model.Observation, error) {
	if len(c.sources) == 0 {
		return model.Observation{}, ErrNoSources
	}

	var errs []error
	for _, src := range c.sources {
		obs, err := src.Fetch(ctx, lat, lon)
		if err == nil {
			c.logger.Debug("Observation fetched",
				zap.String("source", src.Name()),
				zap.Float64("wind_speed", obs.WindSpeed),
				zap.Float64("pressure", obs.Pressure))
			return obs, nil
		}
		if errors.Is(err, ErrNotConfigured) {
			c.logger.Debug("Weather source not configured", zap.String("source", src.Name()))
		} else {
			c.logger.Warn("Weather source failed",
				zap.String("source", src.Name()),
				zap.Error(err))
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return model.Observation{}, fmt.Errorf("all weather sources failed: %w", errors.Join(errs...))
}
