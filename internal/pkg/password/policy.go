// Package password holds the strength policy applied to new passwords on
// reset consumption.
package password

import "unicode"

// MinLength is the minimum accepted password length.
const MinLength = 8

// StrongEnough reports whether pw meets the policy: at least MinLength
// characters and at least one uppercase letter, one lowercase letter, one
// digit, and one symbol.
func StrongEnough(pw string) bool {
	if len(pw) < MinLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
