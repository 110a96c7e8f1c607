package model

import (
	"strings"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateNewComment_Valid(t *testing.T) {
	if err := ValidateNewComment("Alice", "Great program!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNewComment_Fields(t *testing.T) {
	for _, tc := range []struct {
		name     string
		author   string
		message  string
		wantFlds []string
	}{
		{"EmptyName", "", "hello", []string{"name"}},
		{"EmptyMessage", "Alice", "", []string{"message"}},
		{"WhitespaceOnly", "  \t", "\n  ", []string{"name", "message"}},
		{"NameTooLong", strings.Repeat("a", MaxNameLength+1), "hi", []string{"name"}},
		{"MessageTooLong", "Bo", strings.Repeat("m", MaxMessageLength+1), []string{"message"}},
		{"EscapeInName", "evil\x1b[2J", "hi", []string{"name"}},
		{"NewlineInName", "Ann\nBo", "hi", []string{"name"}},
		{"OSCInMessage", "Bo", "hi\x1b]0;pwned\x07", []string{"message"}},
		{"CarriageReturnInMessage", "Bo", "ok\rfake", []string{"message"}},
		{"C1InMessage", "Bo", "hi\u009b2J", []string{"message"}},
		{"DELInMessage", "Bo", "hi\x7f", []string{"message"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			errs := fieldErrors(t, ValidateNewComment(tc.author, tc.message))
			if len(errs) != len(tc.wantFlds) {
				t.Fatalf("got %d field errors (%v), want %d", len(errs), errs, len(tc.wantFlds))
			}
			for _, f := range tc.wantFlds {
				if !hasFieldError(errs, f) {
					t.Errorf("expected error on field %q", f)
				}
			}
		})
	}
}

func TestValidateNewComment_LimitsCountRunes(t *testing.T) {
	// 50 multi-byte runes is still within the name limit.
	name := strings.Repeat("é", MaxNameLength)
	if err := ValidateNewComment(name, "ok"); err != nil {
		t.Fatalf("expected %d runes to be accepted, got %v", MaxNameLength, err)
	}
}

func TestValidateNewComment_TrimsBeforeLengthCheck(t *testing.T) {
	name := "  " + strings.Repeat("a", MaxNameLength) + "  "
	if err := ValidateNewComment(name, "ok"); err != nil {
		t.Fatalf("surrounding whitespace should not count: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "name", Message: "is required"},
		{Field: "message", Message: "is required"},
	}}
	want := "validation failed: name: is required; message: is required"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsBlank(t *testing.T) {
	for _, tc := range []struct {
		name, message string
		want          bool
	}{
		{"", "hello", true},
		{"Alice", "", true},
		{"  ", "x", true},
		{"Alice", "hi", false},
	} {
		if got := IsBlank(tc.name, tc.message); got != tc.want {
			t.Errorf("IsBlank(%q, %q) = %v, want %v", tc.name, tc.message, got, tc.want)
		}
	}
}

func TestValidateNewComment_AllowsNewlinesInMessage(t *testing.T) {
	if err := ValidateNewComment("Bo", "first line\nsecond line"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
