package ocr

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// preprocess converts one display region into a binarized, upscaled PNG
// tuned for digit recognition. 7-segment strokes are sparse and
// low-contrast under phone-camera lighting; local contrast equalization
// plus Otsu binarization and a morphological close to reconnect broken
// segments is the highest-leverage step in the whole pipeline.
func preprocess(region image.Image, cfg Config) ([]byte, error) {
	src, err := gocv.ImageToMatRGB(region)
	if err != nil {
		return nil, fmt.Errorf("region to mat: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("empty region")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	// Local contrast equalization copes with uneven illumination far
	// better than a global stretch on reflective LCD glass.
	clahe := gocv.NewCLAHEWithParams(2.5, image.Pt(8, 8))
	defer clahe.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(gray, &equalized)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(equalized, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(blurred, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	// Tesseract wants dark glyphs on a light background; flip when the
	// backlight came out as the minority (dark) class.
	if gocv.CountNonZero(binary) < binary.Rows()*binary.Cols()/2 {
		gocv.BitwiseNot(binary, &binary)
	}

	// Reconnect segment strokes the threshold may have broken apart.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	scaled := gocv.NewMat()
	defer scaled.Close()
	w := int(float64(closed.Cols()) * cfg.UpscaleFactor)
	h := int(float64(closed.Rows()) * cfg.UpscaleFactor)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("region too small to upscale")
	}
	gocv.Resize(closed, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationCubic)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, scaled)
	if err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
