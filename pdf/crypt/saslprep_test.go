package crypt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSASLprep(t *testing.T) {
	// Examples from RFC 4013 section 3.
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"soft hyphen mapped to nothing", "I\u00ADX", "IX", nil},
		{"no transformation", "user", "user", nil},
		{"case preserved", "USER", "USER", nil},
		{"NFKC", "\u00AA", "a", nil},
		{"NFKC roman numeral", "\u2168", "IX", nil},
		{"non-ASCII space", "a\u00A0b", "a b", nil},
		{"zero width space", "pass\u200Bword", "password", nil},
		{"control character", "\u0007", "", ErrSASLprepProhibited},
		{"bidi violation", "\u06271", "", ErrSASLprepBidirectional},
		{"RTL only", "\u0627\u0628", "\u0627\u0628", nil},
		{"empty", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SASLprep(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("SASLprep(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if got != tt.expected {
				t.Errorf("SASLprep(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPreparePasswordTruncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	got, err := PreparePassword(long)
	if err != nil {
		t.Fatalf("PreparePassword failed: %v", err)
	}
	if len(got) != maxPasswordBytes {
		t.Errorf("Expected %d bytes, got %d", maxPasswordBytes, len(got))
	}
	if !bytes.Equal(got, []byte(long[:maxPasswordBytes])) {
		t.Error("Truncation should keep the leading bytes")
	}

	empty, err := PreparePassword("")
	if err != nil || empty != nil {
		t.Errorf("PreparePassword(\"\") = %v, %v", empty, err)
	}
}
