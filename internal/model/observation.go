package model

import (
	"math"
	"time"
)

// SpeedUnit represents the unit a wind speed was reported in
type SpeedUnit string

const (
	SpeedMetersPerSecond   SpeedUnit = "m/s"
	SpeedKilometersPerHour SpeedUnit = "km/h"
	SpeedKnots             SpeedUnit = "kn"
)

// Geo represents a WGS-84 coordinate pair
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Observation represents one weather/sea-state reading. It is immutable once captured.
type Observation struct {
	Timestamp     time.Time `json:"timestamp"`
	WindSpeed     float64   `json:"wind_speed"`
	WindUnit      SpeedUnit `json:"wind_unit,omitempty"`
	WindDirection *float64  `json:"wind_direction_deg,omitempty"`
	Pressure      float64   `json:"pressure_hpa"`
	WaveHeight    float64   `json:"wave_height_m"`
	WaterLevel    float64   `json:"water_level_m"`
	Geo           Geo       `json:"geo"`
	Location      string    `json:"location,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// WindSpeedMS returns the wind speed in meters per second. An empty unit is
// read as m/s. Negative or NaN speeds are reported as 0.
func (o Observation) WindSpeedMS() float64 {
	v := o.WindSpeed
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	switch o.WindUnit {
	case SpeedKilometersPerHour:
		return v / 3.6
	case SpeedKnots:
		return v * 0.514444
	default:
		return v
	}
}

// WindSpeedKmh returns the wind speed in kilometers per hour
func (o Observation) WindSpeedKmh() float64 {
	return o.WindSpeedMS() * 3.6
}

// HasPressure reports whether the observation carries a usable pressure reading
func (o Observation) HasPressure() bool {
	return o.Pressure > 0 && !math.IsNaN(o.Pressure) && !math.IsInf(o.Pressure, 0)
}

// Float64 returns a pointer to v, for optional observation fields
func Float64(v float64) *float64 {
	return &v
}
