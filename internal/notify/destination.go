package notify

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	minDeviceTokenLen = 8
	maxDeviceTokenLen = 4096
)

var (
	phonePattern       = regexp.MustCompile(`^\+?[\d\s\-\(\)\.]+$`)
	deviceTokenPattern = regexp.MustCompile(`^[A-Za-z0-9:_\-\.]+$`)
)

// NormalizePhone validates raw and returns it in E.164 form. Numbers without
// an international prefix get countryCode; a single leading 0 is treated as a
// national trunk prefix.
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !phonePattern.MatchString(raw) {
		return "", fmt.Errorf("%w: malformed phone number", ErrInvalidDestination)
	}

	digits := onlyDigits(raw)
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("%w: phone number must have 7-15 digits, got %d", ErrInvalidDestination, len(digits))
	}

	countryCode = onlyDigits(countryCode)
	switch {
	case strings.HasPrefix(raw, "+"):
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && countryCode != "":
		digits = countryCode + digits[1:]
	case len(digits) <= 10 && countryCode != "":
		digits = countryCode + digits
	}

	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("%w: normalized phone number must have 7-15 digits", ErrInvalidDestination)
	}
	return "+" + digits, nil
}

// ValidateEmail returns the bare address of raw
func ValidateEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	return addr.Address, nil
}

// ValidateDeviceToken checks the shape of a push device token
func ValidateDeviceToken(token string) error {
	if len(token) < minDeviceTokenLen || len(token) > maxDeviceTokenLen {
		return fmt.Errorf("%w: device token must be %d-%d characters, got %d",
			ErrInvalidDestination, minDeviceTokenLen, maxDeviceTokenLen, len(token))
	}
	if !deviceTokenPattern.MatchString(token) {
		return fmt.Errorf("%w: malformed device token", ErrInvalidDestination)
	}
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
