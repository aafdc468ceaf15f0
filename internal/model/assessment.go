package model

import "time"

// ThreatAssessment represents the merged result of one detection cycle.
// It is read-only once created.
type ThreatAssessment struct {
	Timestamp        time.Time       `json:"timestamp"`
	Observation      *Observation    `json:"observation,omitempty"`
	Cyclone          CycloneEstimate `json:"cyclone"`
	Surge            SurgeEstimate   `json:"storm_surge"`
	CycloneTriggered bool            `json:"cyclone_triggered"`
	SurgeTriggered   bool            `json:"surge_triggered"`
	Overall          ThreatLevel     `json:"overall_threat"`
	Recommendations  []string        `json:"recommendations"`
}
