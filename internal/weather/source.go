// Package weather fetches current observations from external weather providers.
package weather

import (
	"context"
	"errors"
	"math"

	"github.com/t77yq/coastal-alert/internal/model"
)

var (
	// ErrNotConfigured is returned by a source that has no API key
	ErrNotConfigured = errors.New("weather source not configured")

	// ErrNoSources is returned when a chain has nothing to try
	ErrNoSources = errors.New("no weather sources")
)

// Source fetches the current observation at a coordinate
type Source interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (model.Observation, error)
}

// EstimateWaveHeight estimates significant wave height in meters from wind in km/h
func EstimateWaveHeight(windKmh float64) float64 {
	if windKmh <= 0 || math.IsNaN(windKmh) {
		return 0
	}
	return math.Min(12.0, math.Max(0.1, 0.0248*windKmh*windKmh))
}

// EstimateWaterLevel estimates water level in meters from pressure in hPa
func EstimateWaterLevel(pressure float64) float64 {
	if pressure <= 0 || math.IsNaN(pressure) {
		return 0
	}
	return math.Max(0, (1013.25-pressure)*0.01)
}

// fillEstimates sets wave height and water level when the provider did not report them
func fillEstimates(obs *model.Observation) {
	if obs.WaveHeight == 0 {
		obs.WaveHeight = EstimateWaveHeight(obs.WindSpeedKmh())
	}
	if obs.WaterLevel == 0 {
		obs.WaterLevel = EstimateWaterLevel(obs.Pressure)
	}
}
