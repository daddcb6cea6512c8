// Package numeric decides whether a byte string looks like a 64-bit signed
// decimal integer, the classification rule shared by the value and ziplist
// packages.
package numeric

import "strconv"

// Classify reports whether b is the canonical decimal representation of a
// value that fits in an int64: it matches -?(0|[1-9][0-9]*) and parses
// within [-2^63, 2^63-1]. Leading zeros other than the single digit "0"
// disqualify the string, as do signs or digits the grammar forbids. "-0"
// is accepted and normalizes to 0.
func Classify(b []byte) (n int64, ok bool) {
	if len(b) == 0 {
		return 0, false
	}
	i := 0
	if b[0] == '-' {
		i++
	}
	if i >= len(b) {
		return 0, false
	}
	digits := b[i:]
	if len(digits) == 0 {
		return 0, false
	}
	if digits[0] == '0' {
		if len(digits) != 1 {
			return 0, false
		}
		// "-0" normalizes to 0.
		return 0, true
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	parsed, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// FormatInt renders n as its canonical decimal byte representation.
func FormatInt(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}
