package model

import "time"

// DeliveryFailure describes one failed (recipient, channel) send
type DeliveryFailure struct {
	RecipientID string  `json:"recipient_id"`
	Channel     Channel `json:"channel"`
	Error       string  `json:"error"`
	Reason      string  `json:"reason"`
}

// DispatchResult represents the outcome of one dispatch call. It is immutable once returned.
type DispatchResult struct {
	ID              string            `json:"id"`
	EnvelopeID      string            `json:"envelope_id"`
	Level           ThreatLevel       `json:"threat_level"`
	Zone            string            `json:"zone,omitempty"`
	TotalRecipients int               `json:"total_users"`
	EmailSent       int               `json:"email_sent"`
	SMSSent         int               `json:"sms_sent"`
	PushSent        int               `json:"push_sent"`
	Failed          int               `json:"failed"`
	Skipped         int               `json:"skipped,omitempty"`
	Cancelled       bool              `json:"cancelled,omitempty"`
	Success         bool              `json:"success"`
	Reason          string            `json:"reason,omitempty"`
	Errors          []DeliveryFailure `json:"errors,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
}

// Sent returns the total number of successful sends across channels
func (r *DispatchResult) Sent() int {
	return r.EmailSent + r.SMSSent + r.PushSent
}

// Attempted returns the number of (recipient, channel) pairs that were sent or failed
func (r *DispatchResult) Attempted() int {
	return r.Sent() + r.Failed
}

// Record counts one successful send on ch
func (r *DispatchResult) Record(ch Channel) {
	switch ch {
	case ChannelEmail:
		r.EmailSent++
	case ChannelSMS:
		r.SMSSent++
	case ChannelPush:
		r.PushSent++
	}
}
