// Package ocr turns a photograph of a thermometer/hygrometer display into
// validated temperature and humidity readings.
//
// The pipeline runs a fixed chain of stages: normalize the photo, locate
// the display, split it into temperature and humidity regions, preprocess
// each region for digit legibility, recognize text with a local OCR engine,
// recover numbers with layered heuristics, and consult a vision-capable
// language model as a fallback when the local result fails a plausibility
// check. Every stage below image decoding degrades instead of
// failing, so Extract always produces a result, possibly with nil fields.
package ocr

import "fmt"

// Role tags a region or token with the physical reading it belongs to.
type Role int

const (
	// RoleFull marks data derived from the whole frame.
	RoleFull Role = iota
	// RoleTemperature marks the temperature sub-region of the display.
	RoleTemperature
	// RoleHumidity marks the humidity sub-region of the display.
	RoleHumidity
)

func (r Role) String() string {
	switch r {
	case RoleTemperature:
		return "temperature"
	case RoleHumidity:
		return "humidity"
	default:
		return "full"
	}
}

// Token is one unit of OCR output: a recognized text fragment plus the
// region it came from. Tokens carry no positional guarantee beyond the
// engine's emission order; one physical digit sequence may arrive split
// across several tokens.
type Token struct {
	Text string
	Role Role
}

// CandidateSource identifies which recognizer produced a candidate value.
type CandidateSource int

const (
	SourcePrimaryOCR CandidateSource = iota
	SourceSecondaryModel
	SourceDateMetadata
)

func (s CandidateSource) String() string {
	switch s {
	case SourceSecondaryModel:
		return "secondary_model"
	case SourceDateMetadata:
		return "date_metadata"
	default:
		return "primary_ocr"
	}
}

// Candidate is a single recovered numeric value. Candidates live only for
// the duration of one pipeline run.
type Candidate struct {
	Value   float64
	Source  CandidateSource
	Role    Role
	Decimal bool // value carried an explicit decimal separator
}

// DecodeError reports input bytes that are not a supported image
// container. It is the only pipeline failure surfaced to the caller;
// everything downstream of decoding recovers locally.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode image: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }
