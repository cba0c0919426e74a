// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// SanitizeText cleans free text and caps it at max runes.
func SanitizeText(input string, max int) string {
	input = SanitizeInput(input)
	if max > 0 && utf8.RuneCountInString(input) > max {
		input = string([]rune(input)[:max])
	}
	return input
}
