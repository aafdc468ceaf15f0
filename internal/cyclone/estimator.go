// Package cyclone provides cyclone classification from sensor features.
// The classifier itself is opaque; this package only consumes it.
package cyclone

import (
	"context"
	"math"
	"strings"

	"github.com/t77yq/coastal-alert/internal/model"
)

// Estimator classifies sensor features into a cyclone estimate
type Estimator interface {
	Predict(ctx context.Context, features Features) (model.CycloneEstimate, error)
}

// Features is the classifier input
type Features struct {
	DayOfYear    int     `json:"day_of_year"`
	WindSpeedKmh float64 `json:"wind_speed"`
	Pressure     float64 `json:"pressure"`
	WaveHeight   float64 `json:"wave_height"`
	WaterLevel   float64 `json:"water_level"`
}

// FeaturesFrom extracts classifier features from an observation
func FeaturesFrom(obs model.Observation) Features {
	return Features{
		DayOfYear:    obs.Timestamp.YearDay(),
		WindSpeedKmh: obs.WindSpeedKmh(),
		Pressure:     obs.Pressure,
		WaveHeight:   obs.WaveHeight,
		WaterLevel:   obs.WaterLevel,
	}
}

// ParseClass maps a classifier label to a CycloneClass. Unknown labels and
// NORMAL map to NONE.
func ParseClass(label string) model.CycloneClass {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "CYCLONE":
		return model.CycloneClassCyclone
	case "STORM":
		return model.CycloneClassStorm
	default:
		return model.CycloneClassNone
	}
}

// NewEstimate builds an estimate from a label and its probabilities. When
// probs holds a CYCLONE probability that value is reported even if CYCLONE is
// not the winning class.
func NewEstimate(class model.CycloneClass, probability float64, probs map[model.CycloneClass]float64, source string) model.CycloneEstimate {
	if p, ok := probs[model.CycloneClassCyclone]; ok {
		probability = p
	} else if p, ok := probs[class]; ok {
		probability = p
	}
	probability = clamp01(probability)
	return model.CycloneEstimate{
		Classification:     class,
		Probability:        probability,
		ClassProbabilities: probs,
		Confidence:         math.Abs(probability-0.5) * 2,
		Source:             source,
		Available:          true,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
