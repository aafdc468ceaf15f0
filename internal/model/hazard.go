package model

// CycloneClass represents the label returned by the cyclone classifier
type CycloneClass string

const (
	CycloneClassNone    CycloneClass = "NONE"
	CycloneClassStorm   CycloneClass = "STORM"
	CycloneClassCyclone CycloneClass = "CYCLONE"
)

// CycloneEstimate represents the classifier output for one detection cycle.
// Probability is the CYCLONE probability whenever ClassProbabilities carries
// one, otherwise the probability of Classification.
type CycloneEstimate struct {
	Classification     CycloneClass             `json:"classification"`
	Probability        float64                  `json:"probability"`
	ClassProbabilities map[CycloneClass]float64 `json:"class_probabilities,omitempty"`
	Confidence         float64                  `json:"confidence"`
	Source             string                   `json:"source,omitempty"`
	Available          bool                     `json:"available"`
	Error              string                   `json:"error,omitempty"`
}

// UnavailableCycloneEstimate is substituted when the classifier fails
func UnavailableCycloneEstimate(err error) CycloneEstimate {
	e := CycloneEstimate{Classification: CycloneClassNone}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// SurgeTier represents the storm-surge threat tier
type SurgeTier string

const (
	SurgeTierLow      SurgeTier = "LOW"
	SurgeTierModerate SurgeTier = "MODERATE"
	SurgeTierHigh     SurgeTier = "HIGH"
	SurgeTierExtreme  SurgeTier = "EXTREME"
)

// Rank orders tiers from LOW (0) to EXTREME (3)
func (t SurgeTier) Rank() int {
	switch t {
	case SurgeTierModerate:
		return 1
	case SurgeTierHigh:
		return 2
	case SurgeTierExtreme:
		return 3
	default:
		return 0
	}
}

// SurgeEstimate represents a storm-surge water-level estimate.
// TotalWaterLevel = PressureComponent + WindComponent + TidalHeight.
type SurgeEstimate struct {
	PressureComponent   float64   `json:"pressure_component_m"`
	WindComponent       float64   `json:"wind_component_m"`
	TidalHeight         float64   `json:"tidal_height_m"`
	TotalWaterLevel     float64   `json:"total_water_level_m"`
	Tier                SurgeTier `json:"tier"`
	Threshold           float64   `json:"threshold_m"`
	Location            string    `json:"location"`
	VulnerabilityFactor float64   `json:"vulnerability_factor"`
	TideAvailable       bool      `json:"tide_available"`
	Degraded            []string  `json:"degraded,omitempty"`
}

// ThreatLevel represents the overall threat level of an assessment
type ThreatLevel string

const (
	ThreatLevelLow    ThreatLevel = "LOW"
	ThreatLevelMedium ThreatLevel = "MEDIUM"
	ThreatLevelHigh   ThreatLevel = "HIGH"
)

// Valid reports whether l is one of the known levels
func (l ThreatLevel) Valid() bool {
	switch l {
	case ThreatLevelLow, ThreatLevelMedium, ThreatLevelHigh:
		return true
	}
	return false
}

// Value maps the level to a gauge value (LOW=0, MEDIUM=1, HIGH=2)
func (l ThreatLevel) Value() float64 {
	switch l {
	case ThreatLevelMedium:
		return 1
	case ThreatLevelHigh:
		return 2
	default:
		return 0
	}
}
