package surge

import (
	"fmt"
	"strings"
)

const (
	// DefaultProfileName is used for locations with no profile of their own
	DefaultProfileName = "default"

	defaultBaseThreshold       = 2.0
	defaultWindCoefficient     = 0.0005
	defaultOnshoreReferenceDeg = 180.0
)

// Profile describes the coastal vulnerability of one location
type Profile struct {
	VulnerabilityFactor float64 `mapstructure:"vulnerability_factor" json:"vulnerability_factor"`
	CoastalSlope        float64 `mapstructure:"coastal_slope" json:"coastal_slope"`
	AverageDepth        float64 `mapstructure:"average_depth" json:"average_depth"`
}

// Config holds the calibration constants of the surge estimator
type Config struct {
	BaseThreshold       float64            `mapstructure:"base_threshold"`
	WindCoefficient     float64            `mapstructure:"wind_coefficient"`
	OnshoreReferenceDeg float64            `mapstructure:"onshore_reference_deg"`
	DefaultProfile      string             `mapstructure:"default_profile"`
	Profiles            map[string]Profile `mapstructure:"profiles"`
}

// DefaultProfiles returns the built-in vulnerability profiles
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"mumbai":           {VulnerabilityFactor: 0.8, CoastalSlope: 0.01, AverageDepth: 10},
		DefaultProfileName: {VulnerabilityFactor: 0.5, CoastalSlope: 0.02, AverageDepth: 15},
	}
}

// DefaultConfig returns the stock calibration
func DefaultConfig() Config {
	return Config{
		BaseThreshold:       defaultBaseThreshold,
		WindCoefficient:     defaultWindCoefficient,
		OnshoreReferenceDeg: defaultOnshoreReferenceDeg,
		DefaultProfile:      DefaultProfileName,
		Profiles:            DefaultProfiles(),
	}
}

// Validate checks the calibration constants and every profile
func (c Config) Validate() error {
	if c.BaseThreshold <= 0 {
		return fmt.Errorf("surge base threshold must be positive, got %v", c.BaseThreshold)
	}
	if c.WindCoefficient < 0 {
		return fmt.Errorf("surge wind coefficient must not be negative, got %v", c.WindCoefficient)
	}
	for name, p := range c.Profiles {
		if p.VulnerabilityFactor <= 0 || p.VulnerabilityFactor > 1 {
			return fmt.Errorf("profile %q: vulnerability factor must be in (0,1], got %v", name, p.VulnerabilityFactor)
		}
	}
	return nil
}

// profileFor returns the profile for location, falling back to the default
// profile and then to the built-in default.
func (c Config) profileFor(location string) (string, Profile) {
	key := strings.ToLower(strings.TrimSpace(location))
	if p, ok := c.Profiles[key]; ok {
		return key, p
	}
	if p, ok := c.Profiles[c.DefaultProfile]; ok {
		return c.DefaultProfile, p
	}
	return DefaultProfileName, DefaultProfiles()[DefaultProfileName]
}
