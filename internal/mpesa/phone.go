package mpesa

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyPhone    = errors.New("phone number cannot be empty")
	ErrInvalidFormat = errors.New("phone number can only contain digits")
	ErrInvalidPhone  = errors.New("phone number must be a Kenyan mobile number (07XXXXXXXX, 01XXXXXXXX or 254XXXXXXXXX)")
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// NormalizePhone returns the 2547XXXXXXXX / 2541XXXXXXXX form Daraja expects.
// Accepts 0712345678, +254 712 345 678, 254-712-345678 and 712345678.
func NormalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "").Replace(phone)
	if !digitsOnly.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	switch {
	case len(sanitized) == 12 && strings.HasPrefix(sanitized, "254"):
	case len(sanitized) == 10 && strings.HasPrefix(sanitized, "0"):
		sanitized = "254" + sanitized[1:]
	case len(sanitized) == 9:
		sanitized = "254" + sanitized
	default:
		return "", ErrInvalidPhone
	}

	if sanitized[3] != '7' && sanitized[3] != '1' {
		return "", ErrInvalidPhone
	}
	return sanitized, nil
}

func maskPhone(phone string) string {
	if len(phone) < 10 {
		return phone
	}
	return phone[:6] + strings.Repeat("*", len(phone)-9) + phone[len(phone)-3:]
}
