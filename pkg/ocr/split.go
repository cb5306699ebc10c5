package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// Region is a rectangular sub-view of the located display, tagged with
// the reading it should contain.
type Region struct {
	Img  image.Image
	Role Role
}

// splitDisplay cuts the located display into a temperature region (top)
// and a humidity region (bottom) at the given height ratio, excluding a
// small margin on each side of the cut to avoid digit bleed-through.
func splitDisplay(img image.Image, ratio, margin float64) (Region, Region) {
	b := img.Bounds()
	h := b.Dy()
	cut := int(float64(h) * ratio)
	gap := int(float64(h) * margin)

	topRect := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+clampInt(cut-gap, 1, h))
	botRect := image.Rect(b.Min.X, b.Min.Y+clampInt(cut+gap, 0, h-1), b.Max.X, b.Max.Y)

	return Region{Img: imaging.Crop(img, topRect), Role: RoleTemperature},
		Region{Img: imaging.Crop(img, botRect), Role: RoleHumidity}
}

// findSeparator looks for the horizontal gap between the two readings: the
// row with the least ink among the middle rows of the display. Only rows
// between 35% and 80% of the height are considered, since the separator of
// a stacked two-line display sits near the middle. The minimum must be
// clearly below the mean row density (under cfg.SeparatorThreshold of it)
// to count; a flat profile means no trustworthy separator and the caller
// falls back to the fixed split ratios.
func findSeparator(img image.Image, cfg Config) (float64, bool) {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h < 10 {
		return 0, false
	}

	// Digits are the minority of pixels; pick the polarity where the
	// darker class is the smaller one so "ink" means digit strokes.
	density := rowInkDensity(gray)

	lo := int(float64(h) * 0.35)
	hi := int(float64(h) * 0.80)

	var mean float64
	for _, d := range density {
		mean += float64(d)
	}
	mean /= float64(len(density))

	minRow, minVal := -1, 0
	for y := lo; y < hi; y++ {
		if minRow == -1 || density[y] < minVal {
			minRow, minVal = y, density[y]
		}
	}
	if minRow == -1 || mean == 0 {
		return 0, false
	}
	if float64(minVal) >= cfg.SeparatorThreshold*mean {
		return 0, false
	}
	return float64(minRow) / float64(h), true
}

// rowInkDensity counts foreground pixels per row of a grayscale image,
// normalizing polarity so that foreground means digit strokes.
func rowInkDensity(gray *image.NRGBA) []int {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	dark := make([]int, h)
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if gray.NRGBAAt(b.Min.X+x, b.Min.Y+y).R < 128 {
				dark[y]++
				total++
			}
		}
	}

	// More than half the display dark means light-on-dark digits; flip
	// so the counts still track strokes, not background.
	if total > w*h/2 {
		for y := range dark {
			dark[y] = w - dark[y]
		}
	}
	return dark
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
