package surge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/coastal-alert/internal/model"
)

type fakeTides struct {
	height float64
	err    error
	calls  int
}

func (f *fakeTides) CurrentHeight(ctx context.Context, lat, lon float64) (float64, error) {
	f.calls++
	return f.height, f.err
}

func TestTier_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		total     float64
		threshold float64
		want      model.SurgeTier
	}{
		{"exactly threshold plus one is high", 3.5, 2.5, model.SurgeTierHigh},
		{"above threshold plus one is extreme", 3.51, 2.5, model.SurgeTierExtreme},
		{"exactly threshold is moderate", 2.5, 2.5, model.SurgeTierModerate},
		{"exactly threshold minus half is low", 2.0, 2.5, model.SurgeTierLow},
		{"just above threshold minus half", 2.01, 2.5, model.SurgeTierModerate},
		{"zero", 0, 4.0, model.SurgeTierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(tt.total, tt.threshold))
		})
	}
}

func TestTier_Monotone(t *testing.T) {
	for _, threshold := range []float64{2.5, 4.0} {
		prev := -1
		for i := 0; i <= 800; i++ {
			rank := Tier(float64(i)*0.01, threshold).Rank()
			require.GreaterOrEqual(t, rank, prev)
			prev = rank
		}
	}
}

func TestEstimator_Predict(t *testing.T) {
	// Setup
	tides := &fakeTides{height: 0.5}
	est := NewEstimator(DefaultConfig(), tides, zaptest.NewLogger(t))

	obs := model.Observation{WindSpeed: 30, Pressure: 965, Geo: model.Geo{Lat: 19.07, Lon: 72.87}}
	got := est.Predict(context.Background(), obs, "Mumbai")

	assert.Equal(t, "mumbai", got.Location)
	assert.InDelta(t, 0.4825, got.PressureComponent, 1e-9)
	assert.InDelta(t, 0.45, got.WindComponent, 1e-9)
	assert.InDelta(t, 0.5, got.TidalHeight, 1e-9)
	assert.Equal(t, got.PressureComponent+got.WindComponent+got.TidalHeight, got.TotalWaterLevel)
	assert.InDelta(t, 2.5, got.Threshold, 1e-9)
	assert.Equal(t, model.SurgeTierLow, got.Tier)
	assert.True(t, got.TideAvailable)
	assert.Empty(t, got.Degraded)
	assert.Equal(t, 1, tides.calls)
}

func TestEstimator_WindDirection(t *testing.T) {
	est := NewEstimator(DefaultConfig(), &fakeTides{}, zaptest.NewLogger(t))

	tests := []struct {
		name string
		dir  *float64
		want float64
	}{
		{"unknown direction is fully onshore", nil, 0.05},
		{"onshore", model.Float64(180), 0.05},
		{"offshore", model.Float64(0), 0},
		{"oblique", model.Float64(120), 0.025},
		{"perpendicular", model.Float64(90), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := model.Observation{WindSpeed: 36, WindUnit: model.SpeedKilometersPerHour, WindDirection: tt.dir, Pressure: 1013.25}
			got := est.Predict(context.Background(), obs, "default")
			assert.InDelta(t, tt.want, got.WindComponent, 1e-9)
			assert.GreaterOrEqual(t, got.WindComponent, 0.0)
		})
	}
}

func TestEstimator_DegradesGracefully(t *testing.T) {
	tides := &fakeTides{err: errors.New("boom")}
	est := NewEstimator(DefaultConfig(), tides, zaptest.NewLogger(t))

	got := est.Predict(context.Background(), model.Observation{WindSpeed: 10}, "atlantis")

	assert.Equal(t, DefaultProfileName, got.Location)
	assert.InDelta(t, 4.0, got.Threshold, 1e-9)
	assert.Zero(t, got.PressureComponent)
	assert.Zero(t, got.TidalHeight)
	assert.False(t, got.TideAvailable)
	assert.Equal(t, []string{"pressure", "tide"}, got.Degraded)
	assert.Equal(t, model.SurgeTierLow, got.Tier)
}

func TestEstimator_NilTideProvider(t *testing.T) {
	est := NewEstimator(Config{}, nil, zaptest.NewLogger(t))

	got := est.Predict(context.Background(), model.Observation{Pressure: 900}, "mumbai")

	assert.InDelta(t, 1.1325, got.PressureComponent, 1e-9)
	assert.Zero(t, got.WindComponent)
	assert.Contains(t, got.Degraded, "tide")
}

func TestEstimator_ComponentsSumToTotal(t *testing.T) {
	est := NewEstimator(DefaultConfig(), &fakeTides{height: 1.3}, zaptest.NewLogger(t))

	for _, p := range []float64{880, 940.5, 990, 1013.25, 1030} {
		for _, w := range []float64{0, 12.5, 44, 70} {
			got := est.Predict(context.Background(), model.Observation{WindSpeed: w, Pressure: p}, "mumbai")
			assert.Equal(t, got.PressureComponent+got.WindComponent+got.TidalHeight, got.TotalWaterLevel)
			assert.GreaterOrEqual(t, got.PressureComponent, 0.0)
			assert.GreaterOrEqual(t, got.WindComponent, 0.0)
			assert.GreaterOrEqual(t, got.TidalHeight, 0.0)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.BaseThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Profiles["chennai"] = Profile{VulnerabilityFactor: 1.2}
	assert.Error(t, cfg.Validate())
}
