package surge

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const standardPressure = 1013.25

// TideProvider reports the current tidal height at a coordinate
type TideProvider interface {
	CurrentHeight(ctx context.Context, lat, lon float64) (float64, error)
}

// Estimator computes storm-surge water levels and threat tiers
type Estimator struct {
	logger *zap.Logger
	cfg    Config
	tides  TideProvider
}

// NewEstimator creates a new surge estimator. tides may be nil, in which case
// the tidal height is always 0.
func NewEstimator(cfg Config, tides TideProvider, logger *zap.Logger) *Estimator {
	if cfg.BaseThreshold <= 0 {
		cfg.BaseThreshold = defaultBaseThreshold
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = DefaultProfileName
	}
	return &Estimator{
		logger: logger.Named("surge"),
		cfg:    cfg,
		tides:  tides,
	}
}

// Predict estimates the surge at location from obs. It never fails: missing
// inputs are replaced by zero components and listed in Degraded.
func (e *Estimator) Predict(ctx context.Context, obs model.Observation, location string) model.SurgeEstimate {
	name, profile := e.cfg.profileFor(location)

	est := model.SurgeEstimate{
		Location:            name,
		VulnerabilityFactor: profile.VulnerabilityFactor,
		Threshold:           e.cfg.BaseThreshold / profile.VulnerabilityFactor,
	}

	if obs.HasPressure() {
		est.PressureComponent = PressureComponent(obs.Pressure)
	} else {
		est.Degraded = append(est.Degraded, "pressure")
	}

	est.WindComponent = e.windComponent(obs)

	height, err := e.tideHeight(ctx, obs.Geo)
	if err != nil {
		e.logger.Warn("Tide height unavailable, using 0",
			zap.String("location", name),
			zap.Error(err))
		est.Degraded = append(est.Degraded, "tide")
	} else {
		est.TidalHeight = height
		est.TideAvailable = true
	}

	est.TotalWaterLevel = est.PressureComponent + est.WindComponent + est.TidalHeight
	est.Tier = Tier(est.TotalWaterLevel, est.Threshold)

	e.logger.Debug("Surge estimated",
		zap.String("location", name),
		zap.Float64("total_water_level", est.TotalWaterLevel),
		zap.Float64("threshold", est.Threshold),
		zap.String("tier", string(est.Tier)))

	return est
}

func (e *Estimator) windComponent(obs model.Observation) float64 {
	v := obs.WindSpeedMS()
	factor := 1.0
	if obs.WindDirection != nil && !math.IsNaN(*obs.WindDirection) {
		rad := (*obs.WindDirection - e.cfg.OnshoreReferenceDeg) * math.Pi / 180
		factor = math.Max(0, math.Cos(rad))
	}
	return v * v * factor * e.cfg.WindCoefficient
}

func (e *Estimator) tideHeight(ctx context.Context, geo model.Geo) (float64, error) {
	if e.tides == nil {
		return 0, ErrTideUnavailable
	}
	h, err := e.tides.CurrentHeight(ctx, geo.Lat, geo.Lon)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, ErrTideUnavailable
	}
	// Heights below chart datum are treated as no tidal contribution.
	return math.Max(0, h), nil
}

// PressureComponent returns the inverted-barometer surge for pressure in hPa
func PressureComponent(pressure float64) float64 {
	return math.Max(0, (standardPressure-pressure)*0.01)
}

// Tier classifies total against threshold. Boundaries are exclusive: a value
// equal to a boundary falls into the lower tier.
func Tier(total, threshold float64) model.SurgeTier {
	switch {
	case total > threshold+1.0:
		return model.SurgeTierExtreme
	case total > threshold:
		return model.SurgeTierHigh
	case total > threshold-0.5:
		return model.SurgeTierModerate
	default:
		return model.SurgeTierLow
	}
}
