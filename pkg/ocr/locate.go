package ocr

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/hygrolog/hygrolog/pkg/logging"
)

const (
	// locateWorkingWidth is the longest side the frame is shrunk to
	// before edge detection; contour analysis does not need full
	// resolution and the blur/Canny pass is much faster this way.
	locateWorkingWidth = 640.0

	// locateMinAreaFrac rejects quadrilaterals smaller than this share
	// of the downscaled frame.
	locateMinAreaFrac = 0.05

	// Typical LCD housings are a bit wider than tall.
	locateMinAspect = 0.8
	locateMaxAspect = 1.9

	// locateMaxCandidates bounds how many of the largest contours get
	// the polygon-approximation treatment.
	locateMaxCandidates = 5
)

// Locator finds the thermo-hygrometer display inside a full photo. It
// never fails: when no plausible quadrilateral or bounding box is found
// it hands the frame back unchanged and lets downstream stages cope.
type Locator struct {
	logger zerolog.Logger
}

// NewLocator returns a Locator with a stage-tagged logger.
func NewLocator() *Locator {
	return &Locator{logger: logging.GetPipelineLogger("locate")}
}

type quadCandidate struct {
	corners []image.Point // downscaled coordinates
	score   float64
}

// Locate returns, in order of preference: a perspective-corrected crop of
// the best display quadrilateral, a bounding-box crop of the largest
// plausible contour, or the input unchanged.
func (l *Locator) Locate(img image.Image) image.Image {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil || src.Empty() {
		l.logger.Warn().Err(err).Msg("frame not convertible, skipping display location")
		return img
	}
	defer src.Close()

	bounds := img.Bounds()
	scale := locateWorkingWidth / math.Max(float64(bounds.Dx()), float64(bounds.Dy()))
	if scale > 1 {
		scale = 1
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(src, &small, image.Pt(int(float64(bounds.Dx())*scale), int(float64(bounds.Dy())*scale)), 0, 0, gocv.InterpolationArea)

	edges := detectEdges(small)
	defer edges.Close()

	quad, bbox := l.bestContour(edges, small.Cols()*small.Rows())

	if quad != nil {
		if warped := l.warpQuad(src, quad.corners, scale); warped != nil {
			return warped
		}
	}

	if bbox != nil {
		r := image.Rect(
			int(float64(bbox.Min.X)/scale), int(float64(bbox.Min.Y)/scale),
			int(float64(bbox.Max.X)/scale), int(float64(bbox.Max.Y)/scale),
		).Intersect(bounds)
		if r.Dx() > 0 && r.Dy() > 0 {
			l.logger.Debug().Str("fallback", "bounding_box").Msg("no quadrilateral, cropping largest contour")
			return imaging.Crop(img, r)
		}
	}

	l.logger.Debug().Msg("no display region found, using full frame")
	return img
}

// detectEdges runs the blur / Canny / dilate chain that makes display
// bezels stand out as closed contours.
func detectEdges(small gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(small, &gray, gocv.ColorRGBToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, 50, 150)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	return edges
}

// bestContour scans the external contours of the edge map and returns the
// highest-scoring 4-sided candidate plus the bounding box of the largest
// contour as a fallback, either of which may be nil.
func (l *Locator) bestContour(edges gocv.Mat, frameArea int) (*quadCandidate, *image.Rectangle) {
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	type sized struct {
		idx  int
		area float64
	}
	order := make([]sized, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		order = append(order, sized{idx: i, area: gocv.ContourArea(contours.At(i))})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].area > order[j].area })

	var best *quadCandidate
	var bbox *image.Rectangle
	minArea := locateMinAreaFrac * float64(frameArea)

	for n, s := range order {
		if n >= locateMaxCandidates {
			break
		}
		contour := contours.At(s.idx)

		if bbox == nil && s.area >= minArea {
			r := gocv.BoundingRect(contour)
			bbox = &r
		}

		if s.area < minArea {
			continue
		}

		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, 0.02*peri, true)
		pts := approx.ToPoints()
		approx.Close()
		if len(pts) != 4 {
			continue
		}

		r := gocv.BoundingRect(contour)
		aspect := float64(r.Dx()) / math.Max(1, float64(r.Dy()))
		if aspect < locateMinAspect || aspect > locateMaxAspect {
			continue
		}

		// Area votes for the candidate; skewed corners vote against it.
		score := s.area / (1 + cornerIrregularity(pts))
		if best == nil || score > best.score {
			best = &quadCandidate{corners: pts, score: score}
		}
	}

	return best, bbox
}

// cornerIrregularity sums how far each interior angle of the polygon
// deviates from a right angle, in radians.
func cornerIrregularity(pts []image.Point) float64 {
	var total float64
	for i := range pts {
		prev := pts[(i+len(pts)-1)%len(pts)]
		cur := pts[i]
		next := pts[(i+1)%len(pts)]

		v1x, v1y := float64(prev.X-cur.X), float64(prev.Y-cur.Y)
		v2x, v2y := float64(next.X-cur.X), float64(next.Y-cur.Y)
		dot := v1x*v2x + v1y*v2y
		mag := math.Hypot(v1x, v1y) * math.Hypot(v2x, v2y)
		if mag == 0 {
			continue
		}
		angle := math.Acos(math.Max(-1, math.Min(1, dot/mag)))
		total += math.Abs(angle - math.Pi/2)
	}
	return total
}

// warpQuad upscales the detected corners back to original resolution and
// applies a perspective transform so the display fills the output. Returns
// nil when the geometry degenerates.
func (l *Locator) warpQuad(src gocv.Mat, corners []image.Point, scale float64) image.Image {
	full := make([]image.Point, 4)
	for i, p := range orderCorners(corners) {
		full[i] = image.Pt(int(float64(p.X)/scale), int(float64(p.Y)/scale))
	}

	w := int(math.Max(
		math.Hypot(float64(full[1].X-full[0].X), float64(full[1].Y-full[0].Y)),
		math.Hypot(float64(full[2].X-full[3].X), float64(full[2].Y-full[3].Y)),
	))
	h := int(math.Max(
		math.Hypot(float64(full[3].X-full[0].X), float64(full[3].Y-full[0].Y)),
		math.Hypot(float64(full[2].X-full[1].X), float64(full[2].Y-full[1].Y)),
	))
	if w < 10 || h < 10 {
		return nil
	}

	srcPts := gocv.NewPointVectorFromPoints(full)
	defer srcPts.Close()
	dstPts := gocv.NewPointVectorFromPoints([]image.Point{
		image.Pt(0, 0), image.Pt(w, 0), image.Pt(w, h), image.Pt(0, h),
	})
	defer dstPts.Close()

	m := gocv.GetPerspectiveTransform(srcPts, dstPts)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(src, &warped, m, image.Pt(w, h))

	out, err := warped.ToImage()
	if err != nil {
		l.logger.Warn().Err(err).Msg("perspective warp produced unconvertible mat")
		return nil
	}
	l.logger.Debug().Int("width", w).Int("height", h).Msg("display located via quadrilateral")
	return out
}

// orderCorners arranges four points as top-left, top-right, bottom-right,
// bottom-left using the sum/difference of their coordinates.
func orderCorners(pts []image.Point) [4]image.Point {
	var out [4]image.Point
	minSum, maxSum := math.MaxFloat64, -math.MaxFloat64
	minDiff, maxDiff := math.MaxFloat64, -math.MaxFloat64
	for _, p := range pts {
		sum := float64(p.X + p.Y)
		diff := float64(p.Y - p.X)
		if sum < minSum {
			minSum = sum
			out[0] = p // top-left
		}
		if sum > maxSum {
			maxSum = sum
			out[2] = p // bottom-right
		}
		if diff < minDiff {
			minDiff = diff
			out[1] = p // top-right
		}
		if diff > maxDiff {
			maxDiff = diff
			out[3] = p // bottom-left
		}
	}
	return out
}
