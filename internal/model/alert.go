package model

import "time"

// Channel represents a notification transport
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Channels lists every channel in dispatch order
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

// EmailMessage is the rendered email body of an alert
type EmailMessage struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// PushMessage is the rendered push notification of an alert
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CustomAlert is a caller-supplied payload for manual or test alerts
type CustomAlert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RenderedMessage is what a single channel sender transmits
type RenderedMessage struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	HTML    string `json:"html,omitempty"`
}

// AlertEnvelope represents one alert shared read-only across all sends of a dispatch
type AlertEnvelope struct {
	ID         string            `json:"id"`
	Level      ThreatLevel       `json:"level"`
	Assessment *ThreatAssessment `json:"assessment,omitempty"`
	Custom     *CustomAlert      `json:"custom,omitempty"`
	Zone       string            `json:"zone,omitempty"`
	Email      EmailMessage      `json:"email"`
	SMS        string            `json:"sms"`
	Push       PushMessage       `json:"push"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Message returns the rendered message for ch
func (e *AlertEnvelope) Message(ch Channel) RenderedMessage {
	switch ch {
	case ChannelEmail:
		return RenderedMessage{Subject: e.Email.Subject, HTML: e.Email.HTML, Body: e.Email.HTML}
	case ChannelSMS:
		return RenderedMessage{Body: e.SMS}
	case ChannelPush:
		return RenderedMessage{Subject: e.Push.Title, Body: e.Push.Body}
	default:
		return RenderedMessage{}
	}
}

// TriggerData returns the data that caused the alert, for the audit record
func (e *AlertEnvelope) TriggerData() any {
	if e.Assessment != nil {
		return e.Assessment
	}
	if e.Custom != nil {
		return e.Custom
	}
	return map[string]string{"level": string(e.Level)}
}
