package app

import (
	"fmt"
	"strings"

	"hifz_attendance_notifier/internal/domain/sms"
)

const (
	defaultCountryPrefix = "+1"
	minNormalizedLength  = 11
)

// NormalizePhone converts staff-entered numbers into E.164-like form.
// Everything except digits and a leading '+' is dropped; numbers without a
// country code are assumed to be North American.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	b.Grow(len(trimmed) + 2)
	if hasPlus {
		b.WriteByte('+')
	} else {
		b.WriteString(defaultCountryPrefix)
	}
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if len(normalized) < minNormalizedLength {
		return "", fmt.Errorf("%w: %q", sms.ErrInvalidPhoneFormat, raw)
	}
	return normalized, nil
}
