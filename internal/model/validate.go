package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNameLength is the longest author label accepted, in characters.
	MaxNameLength = 50
	// MaxMessageLength is the longest comment body accepted, in characters.
	MaxMessageLength = 500
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// NormalizeInput trims surrounding whitespace from a name/message pair.
func NormalizeInput(name, message string) (string, string) {
	return strings.TrimSpace(name), strings.TrimSpace(message)
}

// IsBlank reports whether either field is empty once trimmed.
func IsBlank(name, message string) bool {
	name, message = NormalizeInput(name, message)
	return name == "" || message == ""
}

// ValidateNewComment checks a name/message pair before it is inserted.
// Both values are trimmed first. It returns a *ValidationError if any rule
// fails, or nil if the pair is acceptable.
func ValidateNewComment(name, message string) error {
	name, message = NormalizeInput(name, message)
	var ve ValidationError

	switch {
	case name == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	case utf8.RuneCountInString(name) > MaxNameLength:
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must be 50 characters or fewer"})
	case hasControl(name, false):
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must not contain control characters"})
	}

	switch {
	case message == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "message", Message: "is required"})
	case utf8.RuneCountInString(message) > MaxMessageLength:
		ve.Errors = append(ve.Errors, FieldError{Field: "message", Message: "must be 500 characters or fewer"})
	case hasControl(message, true):
		ve.Errors = append(ve.Errors, FieldError{Field: "message", Message: "must not contain control characters other than newlines"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// hasControl reports whether s contains a C0 or C1 control character or
// DEL. Line feeds are permitted when allowNewline is set.
func hasControl(s string, allowNewline bool) bool {
	for _, r := range s {
		if r == '\n' && allowNewline {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
