package utils

import "strings"

// DefaultCountryCode is prefixed to bare 10-digit numbers
const DefaultCountryCode = "91"

// DigitsOnly strips everything that is not an ASCII digit
func DigitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone canonicalizes a contact identifier: non-digits are removed and
// the country code is prefixed when exactly 10 digits remain.
func NormalizePhone(raw string) string {
	clean := DigitsOnly(raw)
	if len(clean) == 10 {
		clean = DefaultCountryCode + clean
	}
	return clean
}

// LastTen returns the trailing 10 digits of a phone, or all digits when shorter
func LastTen(raw string) string {
	clean := DigitsOnly(raw)
	if len(clean) <= 10 {
		return clean
	}
	return clean[len(clean)-10:]
}

// PhonesEquivalent reports whether two identifiers refer to the same contact.
// Matching on the last 10 digits tolerates inconsistent country-code presence;
// distinct numbers sharing a suffix will collide.
func PhonesEquivalent(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return len(na) >= 10 && len(nb) >= 10 && na[len(na)-10:] == nb[len(nb)-10:]
}
