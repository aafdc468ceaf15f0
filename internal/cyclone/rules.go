package cyclone

import (
	"context"

	"github.com/t77yq/coastal-alert/internal/model"
)

// RuleEstimator classifies with fixed wind/pressure rules. It needs no
// external service and serves as a fallback for the remote classifier.
type RuleEstimator struct{}

// NewRuleEstimator creates a new rule-based estimator
func NewRuleEstimator() *RuleEstimator {
	return &RuleEstimator{}
}

// Predict implements Estimator
func (RuleEstimator) Predict(_ context.Context, f Features) (model.CycloneEstimate, error) {
	switch {
	case f.WindSpeedKmh > 60 && f.Pressure < 1000:
		return NewEstimate(model.CycloneClassCyclone, 1, map[model.CycloneClass]float64{
			model.CycloneClassCyclone: 1,
			model.CycloneClassStorm:   0,
			model.CycloneClassNone:    0,
		}, "rules"), nil
	case f.WindSpeedKmh > 40 && f.Pressure < 1005:
		return NewEstimate(model.CycloneClassStorm, 1, map[model.CycloneClass]float64{
			model.CycloneClassCyclone: 0,
			model.CycloneClassStorm:   1,
			model.CycloneClassNone:    0,
		}, "rules"), nil
	default:
		return NewEstimate(model.CycloneClassNone, 1, map[model.CycloneClass]float64{
			model.CycloneClassCyclone: 0,
			model.CycloneClassStorm:   0,
			model.CycloneClassNone:    1,
		}, "rules"), nil
	}
}
