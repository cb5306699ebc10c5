package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var textDateRe = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)

// extractDate recovers a capture date as YYYY-MM-DD. Embedded capture
// metadata wins, a date printed on the display comes second, and today is
// the default: operators photograph readings as they take them, so "now"
// is almost always right and far more useful than an empty field.
func extractDate(capture *CaptureImage, tokens []Token, now func() time.Time) string {
	if capture != nil && capture.TakenAt != nil {
		return capture.TakenAt.Format("2006-01-02")
	}

	for _, tok := range tokens {
		if d, ok := parseTextDate(tok.Text); ok {
			return d
		}
	}

	return now().Format("2006-01-02")
}

func parseTextDate(s string) (string, bool) {
	m := textDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	// Round-trip through time.Date to reject the 31st of a 30-day month.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}
