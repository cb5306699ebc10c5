package reading

import "math"

// Tier classifies a feels-like temperature into an alarm level shown next
// to each saved record.
type Tier string

const (
	TierNormal    Tier = "normal"
	TierAttention Tier = "attention"
	TierCaution   Tier = "caution"
	TierWarning   Tier = "warning"
	TierDanger    Tier = "danger"
)

// HeatIndexC computes the heat index ("feels like" temperature) in degrees
// Celsius from air temperature in °C and relative humidity in percent,
// using the Rothfusz regression. The regression is only calibrated for
// warm humid air; below 26.7 °C or 40 % RH the air temperature itself is
// returned. Results are rounded to one decimal.
func HeatIndexC(tempC, rh float64) float64 {
	if tempC < 26.7 || rh < 40 {
		return round1(tempC)
	}

	t := tempC*9/5 + 32

	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		0.00683783*t*t -
		0.05481717*rh*rh +
		0.00122874*t*t*rh +
		0.00085282*t*rh*rh -
		0.00000199*t*t*rh*rh

	switch {
	case rh < 13 && t >= 80 && t <= 112:
		hi -= ((13 - rh) / 4) * math.Sqrt((17-math.Abs(t-95))/17)
	case rh > 85 && t >= 80 && t <= 87:
		hi += ((rh - 85) / 10) * ((87 - t) / 5)
	}

	return round1((hi - 32) * 5 / 9)
}

// ClassifyTier maps a feels-like temperature in °C to an alarm tier.
func ClassifyTier(feelsLikeC float64) Tier {
	switch {
	case feelsLikeC >= 40:
		return TierDanger
	case feelsLikeC >= 38:
		return TierWarning
	case feelsLikeC >= 35:
		return TierCaution
	case feelsLikeC >= 32:
		return TierAttention
	default:
		return TierNormal
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
