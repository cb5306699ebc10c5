package reading

import (
	"fmt"
	"time"
)

// ExtractionResult is the sole output of the OCR pipeline: the values
// recovered from one photo of a thermo-hygrometer display. Absent fields
// are nil; DisplayString is set only when both values were recovered.
type ExtractionResult struct {
	Date          *string  `json:"date"`           // YYYY-MM-DD
	Temperature   *float64 `json:"temperature"`    // °C
	Humidity      *float64 `json:"humidity"`       // 0–100 %
	DisplayString *string  `json:"display_string"` // e.g. "23.5 / 58"
}

// NewExtractionResult assembles a result and derives DisplayString from the
// recovered values, preserving the invariant that it is present iff both
// temperature and humidity are present.
func NewExtractionResult(date *string, temperature, humidity *float64) ExtractionResult {
	res := ExtractionResult{
		Date:        date,
		Temperature: temperature,
		Humidity:    humidity,
	}
	if temperature != nil && humidity != nil {
		s := fmt.Sprintf("%g / %g", *temperature, *humidity)
		res.DisplayString = &s
	}
	return res
}

// Complete reports whether both readings were recovered.
func (r ExtractionResult) Complete() bool {
	return r.Temperature != nil && r.Humidity != nil
}

// Validate checks the DisplayString invariant.
func (r ExtractionResult) Validate() error {
	if r.DisplayString != nil && !r.Complete() {
		return fmt.Errorf("display string requires both temperature and humidity")
	}
	return nil
}

// Record is one saved measurement: the extraction output plus the fields
// the application layer adds before persisting (photo link, derived
// feels-like value, alarm tier, place).
type Record struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"` // YYYY-MM-DD
	TemperatureC *float64  `json:"temperature_c"`
	HumidityPct  *float64  `json:"humidity_pct"`
	FeelsLikeC   *float64  `json:"feels_like_c"`
	Tier         Tier      `json:"alarm_tier"`
	Latitude     *float64  `json:"lat,omitempty"`
	Longitude    *float64  `json:"lng,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Place        string    `json:"place,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks that a record is storable.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if r.Date == "" {
		return fmt.Errorf("record date cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("record date must be YYYY-MM-DD: %w", err)
	}
	if r.HumidityPct != nil && (*r.HumidityPct < 0 || *r.HumidityPct > 100) {
		return fmt.Errorf("humidity %.1f out of range [0, 100]", *r.HumidityPct)
	}
	return nil
}

// Range is a plausible physical interval used to reject OCR candidates.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the range, bounds included.
func (rg Range) Contains(v float64) bool {
	return v >= rg.Min && v <= rg.Max
}

// DefaultTemperatureRange covers outdoor display readings in °C.
func DefaultTemperatureRange() Range { return Range{Min: -10, Max: 50} }

// DefaultHumidityRange covers relative humidity in percent.
func DefaultHumidityRange() Range { return Range{Min: 0, Max: 100} }
