package model

import "strings"

// Recipient represents a registered person who may receive alerts
type Recipient struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name"`
	Email       string `json:"email,omitempty" yaml:"email"`
	Phone       string `json:"phone,omitempty" yaml:"phone"`
	DeviceToken string `json:"device_token,omitempty" yaml:"device_token"`
	Zone        string `json:"zone,omitempty" yaml:"zone"`
}

// Destination returns the address for ch, or "" if the recipient has none
func (r Recipient) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return strings.TrimSpace(r.Email)
	case ChannelSMS:
		return strings.TrimSpace(r.Phone)
	case ChannelPush:
		return strings.TrimSpace(r.DeviceToken)
	default:
		return ""
	}
}

// Channels returns the recipient's usable channels in dispatch order
func (r Recipient) Channels() []Channel {
	var chs []Channel
	for _, ch := range Channels {
		if r.Destination(ch) != "" {
			chs = append(chs, ch)
		}
	}
	return chs
}
