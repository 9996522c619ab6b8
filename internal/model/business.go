package model

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var businessNameRegex = regexp.MustCompile(`^[a-zA-ZÀ-ÿ0-9\s&.\-]+$`)

// ValidateBusinessName checks a business display name.
func ValidateBusinessName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n < 3:
		return NewValidationError("business_name", "must have at least 3 characters")
	case n > 150:
		return NewValidationError("business_name", "must have at most 150 characters")
	case !businessNameRegex.MatchString(name):
		return NewValidationError("business_name", "contains invalid characters")
	}
	return nil
}
