package model

import "time"

// CycleState represents the detection loop state
type CycleState string

const (
	CycleStateIdle        CycleState = "IDLE"
	CycleStateFetching    CycleState = "FETCHING"
	CycleStateAssessing   CycleState = "ASSESSING"
	CycleStateDispatching CycleState = "DISPATCHING"
)

// CycleOutcome represents how a detection cycle ended
type CycleOutcome string

const (
	CycleOutcomeAssessed   CycleOutcome = "assessed"
	CycleOutcomeDispatched CycleOutcome = "dispatched"
	CycleOutcomeFailed     CycleOutcome = "failed"
	CycleOutcomeSkipped    CycleOutcome = "skipped"
)

// CycleStatus represents the detection loop status exposed to operators
type CycleStatus struct {
	State          CycleState   `json:"state"`
	Schedule       string       `json:"schedule"`
	Location       string       `json:"location"`
	CyclesRun      int64        `json:"cycles_run"`
	CyclesFailed   int64        `json:"cycles_failed"`
	LastOutcome    CycleOutcome `json:"last_outcome,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	LastLevel      ThreatLevel  `json:"last_level,omitempty"`
	LastRunTime    *time.Time   `json:"last_run_time,omitempty"`
	NextRunTime    *time.Time   `json:"next_run_time,omitempty"`
	LastDispatchID string       `json:"last_dispatch_id,omitempty"`
}
