package ocr

import (
	"time"

	"github.com/hygrolog/hygrolog/pkg/reading"
)

// Config tunes the pipeline. Zero values are not usable; start from
// DefaultConfig and override fields as needed.
type Config struct {
	// TemperatureRange and HumidityRange bound which OCR candidates are
	// physically plausible. They also gate the secondary recognizer: a
	// primary value outside its range triggers the fallback.
	TemperatureRange reading.Range
	HumidityRange    reading.Range

	// SplitRatios are the fixed top/bottom split heights tried in order
	// when no separator line is detected, or when a split yields an
	// empty region on either side. The first ratio that produces
	// recognizer output on both sides wins; the last attempt's output
	// is kept even if one side stayed empty.
	SplitRatios []float64

	// SplitMargin is the fraction of the display height excluded on each
	// side of the separator to avoid digit bleed-through.
	SplitMargin float64

	// SeparatorThreshold is the fraction of the mean row ink density a
	// candidate separator row must stay under to be trusted; otherwise
	// the fixed-ratio splits are used.
	SeparatorThreshold float64

	// TemperatureWhitelist and HumidityWhitelist restrict the characters
	// the primary recognizer may emit per region.
	TemperatureWhitelist string
	HumidityWhitelist    string

	// UpscaleFactor is applied to each region after binarization; 7-seg
	// strokes need the extra resolution for the recognizer.
	UpscaleFactor float64

	// SecondaryTimeout bounds the vision-model round trip.
	SecondaryTimeout time.Duration

	// SecondaryTemperatureRange widens the acceptance band for values
	// returned by the vision model, which may see units the local
	// recognizer cannot.
	SecondaryTemperatureRange reading.Range
}

// DefaultConfig returns the tuning the pipeline ships with.
func DefaultConfig() Config {
	return Config{
		TemperatureRange:          reading.DefaultTemperatureRange(),
		HumidityRange:             reading.DefaultHumidityRange(),
		SplitRatios:               []float64{0.55, 0.58, 0.52, 0.60},
		SplitMargin:               0.03,
		SeparatorThreshold:        0.90,
		TemperatureWhitelist:      "0123456789.,-°Cc",
		HumidityWhitelist:         "0123456789.%",
		UpscaleFactor:             3.0,
		SecondaryTimeout:          10 * time.Second,
		SecondaryTemperatureRange: reading.Range{Min: -30, Max: 60},
	}
}
