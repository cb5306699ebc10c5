package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hygrolog/hygrolog/pkg/reading"
)

// The extraction rules run in strict priority order: structural evidence
// (a label or unit next to the number) beats positional evidence (a
// delimiter pair) beats the digit-run repair heuristics beats a plain
// range-filtered sweep. The first rule that produces a value wins.
//
// Labels cover English plus the Korean display vocabulary the devices in
// the field actually use.
var (
	tempLabeledRe = regexp.MustCompile(`(?i)(?:temp(?:erature)?|온도)\s*[:=]?\s*(-?\d{1,3}(?:\.\d{1,2})?)`)
	humiLabeledRe = regexp.MustCompile(`(?i)(?:humidity|humi|rh|습도)\s*[:=]?\s*(\d{1,3}(?:\.\d{1,2})?)`)

	tempUnitRe = regexp.MustCompile(`(-?\d{1,3}(?:\.\d{1,2})?)\s*°?[Cc]`)
	humiUnitRe = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,2})?)\s*%`)

	pairRe = regexp.MustCompile(`(-?\d{1,3}(?:\.\d{1,2})?)\s*(?:/|\||,|\s{2,})\s*(-?\d{1,3}(?:\.\d{1,2})?)`)

	tripleRunRe = regexp.MustCompile(`\b(\d{3})\b`)
	quadRunRe   = regexp.MustCompile(`\b(\d{4})\b`)

	numberRe = regexp.MustCompile(`-?\d{1,3}(?:\.\d+)?`)
)

// normalizeText substitutes the OCR misreads 7-segment displays are known
// for, before any pattern matching: letter O next to a digit is a zero,
// I/l next to a digit is a one, full-width glyphs become ASCII, and a
// comma acting as decimal separator becomes a dot.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "℃", "°C")
	s = strings.ReplaceAll(s, "％", "%")
	s = strings.ReplaceAll(s, "，", ",")

	runes := []rune(s)
	for i, r := range runes {
		switch r {
		case 'O', 'o':
			if adjacentDigit(runes, i) {
				runes[i] = '0'
			}
		case 'I', 'l':
			if adjacentDigit(runes, i) {
				runes[i] = '1'
			}
		}
	}
	s = string(runes)

	// A comma followed by a single digit is a decimal separator, not a
	// value delimiter ("23,5" reads 23.5; "23,58" stays a pair).
	s = commaDecimalRe.ReplaceAllString(s, "$1.$2")
	return s
}

var commaDecimalRe = regexp.MustCompile(`(\d),(\d)(\D|$)`)

func adjacentDigit(runes []rune, i int) bool {
	if i > 0 && isDigit(runes[i-1]) {
		return true
	}
	if i+1 < len(runes) && isDigit(runes[i+1]) {
		return true
	}
	return false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// extractNumber recovers the best candidate value for one role from the
// region's tokens, optionally consulting full-frame tokens when the
// region itself yields nothing. A nil return means no rule matched; the
// caller decides whether the secondary recognizer is worth a network
// round trip.
func extractNumber(tokens []Token, role Role, fullFrame []Token, cfg Config) *Candidate {
	if c := extractFromTokens(tokens, role, cfg); c != nil {
		return c
	}
	if len(fullFrame) > 0 {
		return extractFromTokens(fullFrame, role, cfg)
	}
	return nil
}

func extractFromTokens(tokens []Token, role Role, cfg Config) *Candidate {
	if len(tokens) == 0 {
		return nil
	}

	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, normalizeText(t.Text))
	}
	text := strings.Join(parts, " ")

	// 1. Labeled value. Trusted as-is: an explicit label is the
	// strongest evidence the number belongs to this role, even when the
	// digits themselves were misread out of range (the validity gate
	// deals with that).
	if c := matchLabeled(text, role); c != nil {
		return c
	}

	// 2. Bare number right next to a unit glyph.
	if c := matchUnitAdjacent(text, role); c != nil {
		return c
	}

	// 3. Two numbers around a delimiter; the display prints temperature
	// above/before humidity, so the role picks its slot by position.
	if c := matchDelimiterPair(text, role); c != nil {
		return c
	}

	// 4. Digit-run repair: a dropped decimal point turns 23.5 into 235,
	// and a merged two-line read turns 21 / 20 into 2120.
	if c := matchDigitRun(text, role, cfg); c != nil {
		return c
	}

	// 5. Last resort: every number in range, decimals first, then the
	// larger value as a deterministic tie-break.
	return matchBestOf(parts, role, cfg)
}

func matchLabeled(text string, role Role) *Candidate {
	re := tempLabeledRe
	if role == RoleHumidity {
		re = humiLabeledRe
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return candidateFromString(m[1], role)
}

func matchUnitAdjacent(text string, role Role) *Candidate {
	re := tempUnitRe
	if role == RoleHumidity {
		re = humiUnitRe
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return candidateFromString(m[1], role)
}

func matchDelimiterPair(text string, role Role) *Candidate {
	m := pairRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	slot := m[1]
	if role == RoleHumidity {
		slot = m[2]
	}
	return candidateFromString(slot, role)
}

func matchDigitRun(text string, role Role, cfg Config) *Candidate {
	rng := roleRange(role, cfg)

	// Three digits with no separator: assume the decimal point between
	// the second and third digit did not survive recognition.
	for _, m := range tripleRunRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil || v < 100 || v > 500 {
			continue
		}
		repaired := float64(v) / 10
		if rng.Contains(repaired) {
			return &Candidate{Value: repaired, Source: SourcePrimaryOCR, Role: role, Decimal: true}
		}
	}

	// Four digits: the two stacked readings merged into one run. Split
	// 2+2 and take the half belonging to this role, but only when both
	// halves are plausible for their respective roles.
	for _, m := range quadRunRe.FindAllStringSubmatch(text, -1) {
		t, _ := strconv.ParseFloat(m[1][:2], 64)
		h, _ := strconv.ParseFloat(m[1][2:], 64)
		if !cfg.TemperatureRange.Contains(t) || !cfg.HumidityRange.Contains(h) {
			continue
		}
		v := t
		if role == RoleHumidity {
			v = h
		}
		return &Candidate{Value: v, Source: SourcePrimaryOCR, Role: role}
	}

	return nil
}

func matchBestOf(parts []string, role Role, cfg Config) *Candidate {
	rng := roleRange(role, cfg)

	var best *Candidate
	better := func(c *Candidate) bool {
		if best == nil {
			return true
		}
		if c.Decimal != best.Decimal {
			return c.Decimal
		}
		return c.Value > best.Value
	}

	for _, p := range parts {
		for _, s := range numberRe.FindAllString(p, -1) {
			c := candidateFromString(s, role)
			if c == nil || !rng.Contains(c.Value) {
				continue
			}
			if better(c) {
				best = c
			}
		}
	}
	return best
}

func candidateFromString(s string, role Role) *Candidate {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &Candidate{
		Value:   v,
		Source:  SourcePrimaryOCR,
		Role:    role,
		Decimal: strings.Contains(s, "."),
	}
}

func roleRange(role Role, cfg Config) reading.Range {
	if role == RoleHumidity {
		return cfg.HumidityRange
	}
	return cfg.TemperatureRange
}
