package model

import (
	"encoding/json"
	"time"
)

// AuditRecord represents the persisted summary of one dispatch
type AuditRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	ThreatLevel ThreatLevel     `json:"threat_level"`
	Zone        string          `json:"zone,omitempty"`
	TotalUsers  int             `json:"total_users"`
	EmailSent   int             `json:"email_sent"`
	SMSSent     int             `json:"sms_sent"`
	PushSent    int             `json:"push_sent"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Success     bool            `json:"success"`
	Reason      string          `json:"reason,omitempty"`
	ThreatData  json.RawMessage `json:"threat_data,omitempty"`
	Results     *DispatchResult `json:"results"`
}

// NewAuditRecord builds the audit record for result and its triggering data
func NewAuditRecord(result *DispatchResult, triggerData any) (*AuditRecord, error) {
	rec := &AuditRecord{
		ID:          result.ID,
		Timestamp:   result.CompletedAt,
		ThreatLevel: result.Level,
		Zone:        result.Zone,
		TotalUsers:  result.TotalRecipients,
		EmailSent:   result.EmailSent,
		SMSSent:     result.SMSSent,
		PushSent:    result.PushSent,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		Success:     result.Success,
		Reason:      result.Reason,
		Results:     result,
	}
	if triggerData != nil {
		data, err := json.Marshal(triggerData)
		if err != nil {
			return nil, err
		}
		rec.ThreatData = data
	}
	return rec, nil
}
