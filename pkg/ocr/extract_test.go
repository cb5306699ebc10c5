package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(role Role, texts ...string) []Token {
	out := make([]Token, 0, len(texts))
	for _, t := range texts {
		out = append(out, Token{Text: t, Role: role})
	}
	return out
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "letter O before digit becomes zero",
			input:    "O2.5",
			expected: "02.5",
		},
		{
			name:     "letter O between digits becomes zero",
			input:    "2O5",
			expected: "205",
		},
		{
			name:     "lowercase l next to digit becomes one",
			input:    "2l.5",
			expected: "21.5",
		},
		{
			name:     "standalone word keeps its letters",
			input:    "OIL low",
			expected: "OIL low",
		},
		{
			name:     "full width percent",
			input:    "58％",
			expected: "58%",
		},
		{
			name:     "celsius ligature expands",
			input:    "23.5℃",
			expected: "23.5°C",
		},
		{
			name:     "comma decimal separator",
			input:    "23,5",
			expected: "23.5",
		},
		{
			name:     "comma pair delimiter survives",
			input:    "23,58 left alone",
			expected: "23,58 left alone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeText(tt.input))
		})
	}
}

func TestExtractNumber_LayerPriority(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		role     Role
		tokens   []Token
		expected *float64
	}{
		{
			name:     "labeled temperature",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "temperature:", "23.5"),
			expected: fptr(23.5),
		},
		{
			name:     "labeled humidity korean",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "습도", "58"),
			expected: fptr(58),
		},
		{
			name:     "unit adjacent celsius",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "23.5°C"),
			expected: fptr(23.5),
		},
		{
			name:     "unit adjacent bare C",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "21.4C"),
			expected: fptr(21.4),
		},
		{
			name:     "unit adjacent percent",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "58%"),
			expected: fptr(58),
		},
		{
			name:     "labeled beats unit adjacent",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "temp 22.1", "30.0°C"),
			expected: fptr(22.1),
		},
		{
			name:     "slash pair temperature slot",
			role:     RoleTemperature,
			tokens:   tokens(RoleFull, "23.5/58"),
			expected: fptr(23.5),
		},
		{
			name:     "slash pair humidity slot",
			role:     RoleHumidity,
			tokens:   tokens(RoleFull, "23.5/58"),
			expected: fptr(58),
		},
		{
			name:     "pipe pair humidity slot",
			role:     RoleHumidity,
			tokens:   tokens(RoleFull, "24|61"),
			expected: fptr(61),
		},
		{
			name:     "three digit run implies decimal",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "235"),
			expected: fptr(23.5),
		},
		{
			name:     "three digit run out of repair range rejected",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "990"),
			expected: nil,
		},
		{
			name:     "four digit run temperature half",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "2120"),
			expected: fptr(21),
		},
		{
			name:     "four digit run humidity half",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "2156"),
			expected: fptr(56),
		},
		{
			name:     "best of prefers decimal over integer",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "18", "23.5", "31"),
			expected: fptr(23.5),
		},
		{
			name:     "best of ties break toward larger value",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "45", "58"),
			expected: fptr(58),
		},
		{
			name:     "best of filters humidity range",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "999", "58"),
			expected: fptr(58),
		},
		{
			name:     "best of filters temperature range",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "99.9"),
			expected: nil,
		},
		{
			name:     "misread normalization before parsing",
			role:     RoleTemperature,
			tokens:   tokens(RoleTemperature, "O2.5"),
			expected: fptr(2.5),
		},
		{
			name:     "no tokens",
			role:     RoleTemperature,
			tokens:   nil,
			expected: nil,
		},
		{
			name:     "letters only",
			role:     RoleHumidity,
			tokens:   tokens(RoleHumidity, "ERR", "---"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractNumber(tt.tokens, tt.role, nil, cfg)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, got.Value, 1e-9)
			assert.Equal(t, tt.role, got.Role)
			assert.Equal(t, SourcePrimaryOCR, got.Source)
		})
	}
}

func TestExtractNumber_StructuralEvidenceSkipsRangeFilter(t *testing.T) {
	// A unit-adjacent value is returned even when implausible; the
	// validity gate downstream decides what to do with it.
	cfg := DefaultConfig()
	got := extractNumber(tokens(RoleTemperature, "99.9C"), RoleTemperature, nil, cfg)
	require.NotNil(t, got)
	assert.InDelta(t, 99.9, got.Value, 1e-9)
}

func TestExtractNumber_FullFrameFallback(t *testing.T) {
	cfg := DefaultConfig()
	full := tokens(RoleFull, "23.5/58")

	got := extractNumber(nil, RoleHumidity, full, cfg)
	require.NotNil(t, got)
	assert.InDelta(t, 58, got.Value, 1e-9)

	// Region tokens win over the full frame when they yield anything.
	got = extractNumber(tokens(RoleHumidity, "61%"), RoleHumidity, full, cfg)
	require.NotNil(t, got)
	assert.InDelta(t, 61, got.Value, 1e-9)
}

func TestExtractNumber_ConfigurableRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TemperatureRange.Max = 120

	got := extractNumber(tokens(RoleTemperature, "99.9"), RoleTemperature, nil, cfg)
	require.NotNil(t, got)
	assert.InDelta(t, 99.9, got.Value, 1e-9)
}

func fptr(v float64) *float64 { return &v }
