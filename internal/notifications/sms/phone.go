package sms

import "strings"

const countryCode = "90"

// NormalizePhone reduces phone to digits with the Turkish country code:
// "0532 111 22 33" and "532-111-22-33" both become "905321112233".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	default:
		return countryCode + digits
	}
}

// CountDigits returns how many ASCII digits phone contains.
func CountDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
