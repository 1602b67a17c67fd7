package numbers

import (
	"fmt"
	"strings"
)

const (
	minE164Digits = 7
	maxE164Digits = 15
)

// NormalizeE164 strips common separators from raw and validates the
// result: a leading '+' followed by 7-15 digits.
func NormalizeE164(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "+") {
		return "", fmt.Errorf("invalid phone number %q: must start with +", raw)
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("invalid phone number %q: unexpected character %q", raw, r)
		}
	}
	digits := b.Len() - 1
	if digits < minE164Digits || digits > maxE164Digits {
		return "", fmt.Errorf("invalid phone number %q: expected %d-%d digits, got %d", raw, minE164Digits, maxE164Digits, digits)
	}
	return b.String(), nil
}
