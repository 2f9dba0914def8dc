package secredit

import "unicode/utf8"

// MinKeyLength is the minimum key length in runes accepted for encryption, for
// vault entries and for the master password.
const MinKeyLength = 8

// MaxStrength is the highest score Strength returns.
const MaxStrength = 5

// Strength scores pw from 0 to MaxStrength, one point each for: at least 8
// runes, at least 12 runes, an ASCII uppercase letter, an ASCII digit, and a
// character outside [A-Za-z0-9].
func Strength(pw string) int {
	n := utf8.RuneCountInString(pw)
	score := 0
	if n >= MinKeyLength {
		score++
	}
	if n >= 12 {
		score++
	}

	var upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
		default:
			symbol = true
		}
	}
	for _, ok := range []bool{upper, digit, symbol} {
		if ok {
			score++
		}
	}
	return score
}

// IsStrongEnough reports whether pw may be used as a key.
func IsStrongEnough(pw string) bool {
	return utf8.RuneCountInString(pw) >= MinKeyLength
}
