// Package threat merges hazard estimates into an overall threat level and
// decides whether a population alert is warranted.
package threat

import (
	"time"

	"github.com/t77yq/coastal-alert/internal/model"
)

// CycloneProbabilityThreshold is the CYCLONE probability that must be exceeded
// (strictly) for the cyclone path to trigger.
const CycloneProbabilityThreshold = 0.7

var recommendations = map[model.ThreatLevel][]string{
	model.ThreatLevelHigh: {
		"Evacuate immediately if instructed by authorities",
		"Move to higher ground away from coastal areas",
		"Follow emergency services instructions",
	},
	model.ThreatLevelMedium: {
		"Prepare evacuation plan",
		"Secure property against potential flooding",
		"Monitor weather updates regularly",
	},
	model.ThreatLevelLow: {
		"Continue normal activities",
		"Stay informed about weather conditions",
		"Review emergency preparedness plans",
	},
}

// Recommendations returns a copy of the canned list for level
func Recommendations(level model.ThreatLevel) []string {
	src, ok := recommendations[level]
	if !ok {
		src = recommendations[model.ThreatLevelLow]
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// CycloneTriggered reports whether the estimate is a CYCLONE above the threshold
func CycloneTriggered(c model.CycloneEstimate) bool {
	return c.Classification == model.CycloneClassCyclone && c.Probability > CycloneProbabilityThreshold
}

// SurgeTriggered reports whether the surge tier is HIGH or EXTREME
func SurgeTriggered(s model.SurgeEstimate) bool {
	return s.Tier == model.SurgeTierHigh || s.Tier == model.SurgeTierExtreme
}

// Assess merges the two estimates into one assessment. It performs no I/O and
// returns identical results for identical inputs.
func Assess(ts time.Time, c model.CycloneEstimate, s model.SurgeEstimate) model.ThreatAssessment {
	a := model.ThreatAssessment{
		Timestamp:        ts,
		Cyclone:          c,
		Surge:            s,
		CycloneTriggered: CycloneTriggered(c),
		SurgeTriggered:   SurgeTriggered(s),
	}

	switch {
	case a.CycloneTriggered || a.SurgeTriggered:
		a.Overall = model.ThreatLevelHigh
	case s.Tier == model.SurgeTierModerate:
		a.Overall = model.ThreatLevelMedium
	default:
		a.Overall = model.ThreatLevelLow
	}
	a.Recommendations = Recommendations(a.Overall)

	return a
}

// ShouldDispatch reports whether the assessment warrants a population alert.
// Only HIGH dispatches; MEDIUM and LOW are for monitoring.
func ShouldDispatch(a model.ThreatAssessment) bool {
	return a.Overall == model.ThreatLevelHigh
}
