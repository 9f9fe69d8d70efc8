package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeRace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Hispanic-American", expected: "Hispanic"},
		{input: "WHITE [Hispanic or Latino]", expected: "Hispanic"},
		{input: "black", expected: "Black"},
		{input: "African American", expected: "Black"},
		{input: "Caucasian", expected: "White"},
		{input: "Asian / Pacific Islander", expected: "Asian"},
		{input: "American Indian", expected: "American Indian"},
		{input: "Biracial", expected: "Biracial"},
		{input: "other", expected: "Other"},
		{input: "  N/A ", expected: UnknownValue},
		{input: "", expected: UnknownValue},
		{input: "UNKNOWN", expected: UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalizeRace(tt.input))
		})
	}
}

func TestCanonicalizeGender(t *testing.T) {
	assert.Equal(t, "Male", CanonicalizeGender("male"))
	assert.Equal(t, "Female", CanonicalizeGender(" Female "))
	assert.Equal(t, UnknownValue, CanonicalizeGender("n/a"))
	assert.Equal(t, UnknownValue, CanonicalizeGender("unknown"))
}

func TestCanonicalizeTitle(t *testing.T) {
	assert.Equal(t, "Chicago Heights", CanonicalizeTitle("CHICAGO   heights"))
	assert.Equal(t, UnknownValue, CanonicalizeTitle("N/A"))
}

func TestNormalizeCell(t *testing.T) {
	assert.Equal(t, "a b", NormalizeCell(" a \x00 b\r\n"))
	assert.Equal(t, "ABC", NormalizeCell("ＡＢＣ"))
}

func TestCapitalizeFirst(t *testing.T) {
	assert.Equal(t, "", CapitalizeFirst(""))
	assert.Equal(t, "ÉCole", CapitalizeFirst("éCole"))
}
