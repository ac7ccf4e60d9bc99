package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "ethic_pacifist",
			expected: []string{"ethic_pacifist"},
		},
		{
			name:     "two values",
			input:    "ethic_pacifist, ethic_xenophile",
			expected: []string{"ethic_pacifist", "ethic_xenophile"},
		},
		{
			name:     "three values with varied spacing",
			input:    "civic_agrarian_idyll,  civic_environmentalist , civic_free_haven",
			expected: []string{"civic_agrarian_idyll", "civic_environmentalist", "civic_free_haven"},
		},
		{
			name:     "no spaces after comma",
			input:    "ethic_militarist,ethic_authoritarian",
			expected: []string{"ethic_militarist", "ethic_authoritarian"},
		},
		{
			name:     "trailing comma",
			input:    "civic_beacon_of_liberty,",
			expected: []string{"civic_beacon_of_liberty"},
		},
		{
			name:     "leading comma",
			input:    ",civic_corvee_system",
			expected: []string{"civic_corvee_system"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,ethic_fanatic_militarist,,ethic_xenophobe,,",
			expected: []string{"ethic_fanatic_militarist", "ethic_xenophobe"},
		},
		{
			name:     "value with internal spaces preserved",
			input:    "Consumer Benevolence, Shared Burdens",
			expected: []string{"Consumer Benevolence", "Shared Burdens"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_Idempotent(t *testing.T) {
	// Parsing an already-parsed single value should return same result
	input := "ethic_pacifist"
	firstParse := ParseCSV(input)
	assert.Equal(t, []string{"ethic_pacifist"}, firstParse)

	if len(firstParse) > 0 {
		secondParse := ParseCSV(firstParse[0])
		assert.Equal(t, []string{"ethic_pacifist"}, secondParse)
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	input := "ethic_pacifist, ethic_xenophile"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}
