// Package zipcode canonicalizes and validates 5-digit ZIP codes.
package zipcode

import (
	"strconv"
	"strings"
)

// Reason explains why an input row was rejected.
type Reason string

const (
	ReasonOK                  Reason = ""
	ReasonMalformed           Reason = "malformed"
	ReasonUnknownZip          Reason = "unknown-zip"
	ReasonBadCoordinates      Reason = "bad-coordinates"
	ReasonDuplicateZip        Reason = "duplicate-zip"
	ReasonNonNumericDealCount Reason = "non-numeric-deal-count"
	ReasonNegativeDealCount   Reason = "negative-deal-count"
	ReasonMissingRep          Reason = "missing-rep"
)

// Length is the number of digits in a canonical ZIP.
const Length = 5

// Normalize canonicalizes a textual ZIP token. ZIP+4 forms keep their first
// five digits; every other token must be exactly five digits once non-digit
// characters are stripped. Text tokens are never padded.
func Normalize(raw string) (string, Reason) {
	digits := digitsOnly(raw)
	if len(digits) == 9 && isZipPlus4(strings.TrimSpace(raw)) {
		return digits[:Length], ReasonOK
	}
	if len(digits) != Length {
		return "", ReasonMalformed
	}
	return digits, ReasonOK
}

// NormalizePadded behaves like Normalize but left-pads digit strings shorter
// than five characters, for sources that dropped leading zeros.
func NormalizePadded(raw string) (string, Reason) {
	digits := digitsOnly(raw)
	if digits != "" && len(digits) < Length && digits == strings.TrimSpace(raw) {
		return strings.Repeat("0", Length-len(digits)) + digits, ReasonOK
	}
	return Normalize(raw)
}

// NormalizeNumeric canonicalizes a numeric ZIP token such as a spreadsheet
// number cell, left-padding it to five digits.
func NormalizeNumeric(v int64) (string, Reason) {
	if v < 0 || v > 99999 {
		return "", ReasonMalformed
	}
	s := strconv.FormatInt(v, 10)
	return strings.Repeat("0", Length-len(s)) + s, ReasonOK
}

// Valid reports whether s is already a canonical ZIP.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// isZipPlus4 matches 12345-6789, 12345 6789 and 123456789.
func isZipPlus4(s string) bool {
	switch len(s) {
	case 9:
		return Valid(s[:5]) && Valid("0"+s[5:])
	case 10:
		return Valid(s[:5]) && (s[5] == '-' || s[5] == ' ') && Valid("0"+s[6:])
	}
	return false
}
