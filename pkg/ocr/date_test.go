package ocr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractDate(t *testing.T) {
	taken := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	clock := func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		capture  *CaptureImage
		tokens   []Token
		expected string
	}{
		{
			name:     "capture metadata wins",
			capture:  &CaptureImage{TakenAt: &taken},
			tokens:   tokens(RoleFull, "2025-01-01"),
			expected: "2026-03-14",
		},
		{
			name:     "printed date second",
			capture:  &CaptureImage{},
			tokens:   tokens(RoleFull, "2025/07/03", "23.5"),
			expected: "2025-07-03",
		},
		{
			name:     "dotted date accepted",
			capture:  nil,
			tokens:   tokens(RoleFull, "2024.12.31"),
			expected: "2024-12-31",
		},
		{
			name:     "invalid calendar date skipped",
			capture:  nil,
			tokens:   tokens(RoleFull, "2025-02-30"),
			expected: "2026-08-30",
		},
		{
			name:     "implausible year skipped",
			capture:  nil,
			tokens:   tokens(RoleFull, "1823-05-01"),
			expected: "2026-08-30",
		},
		{
			name:     "no evidence defaults to today",
			capture:  &CaptureImage{},
			tokens:   tokens(RoleFull, "23.5", "58"),
			expected: "2026-08-30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDate(tt.capture, tt.tokens, clock))
		})
	}
}

func TestParseTextDate_ZeroPads(t *testing.T) {
	d, ok := parseTextDate("2025/7/3")
	assert.True(t, ok)
	assert.Equal(t, "2025-07-03", d)
}
