package cyclone

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// Fallback tries estimators in order and returns the first success
type Fallback struct {
	logger     *zap.Logger
	estimators []Estimator
}

// NewFallback creates a new fallback chain
func NewFallback(logger *zap.Logger, estimators ...Estimator) *Fallback {
	return &Fallback{
		logger:     logger.Named("cyclone-fallback"),
		estimators: estimators,
	}
}

// Predict implements Estimator
func (f *Fallback) Predict(ctx context.Context, features Features) (model.CycloneEstimate, error) {
	var errs []error
	for i, e := range f.estimators {
		est, err := e.Predict(ctx, features)
		if err == nil {
			return est, nil
		}
		f.logger.Warn("Cyclone estimator failed",
			zap.Int("index", i),
			zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return model.CycloneEstimate{}, ErrNotConfigured
	}
	return model.CycloneEstimate{}, errors.Join(errs...)
}
