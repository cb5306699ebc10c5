package ocr

import (
	"bytes"
	"image"
	"time"

	// Register the stdlib decoders the uploader is most likely to send.
	_ "image/jpeg"
	_ "image/png"

	// Phone galleries occasionally hand over BMP or WebP.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
)

// CaptureImage is the canonical decoded photo: pixels with EXIF rotation
// already applied, plus whatever capture metadata survived decoding. It is
// never mutated after creation; later stages derive new images from it.
type CaptureImage struct {
	Img       image.Image
	Format    string
	TakenAt   *time.Time
	Latitude  *float64
	Longitude *float64
}

// Normalize decodes raw photo bytes (JPEG, PNG, HEIC, BMP or WebP) into a
// CaptureImage with the EXIF orientation applied. It returns a
// *DecodeError when the bytes are not a supported image container; the
// caller must supply new bytes, there is nothing to retry.
func Normalize(raw []byte) (*CaptureImage, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}

	var (
		img      image.Image
		format   string
		exifData []byte
		err      error
	)

	if isHEIC(raw) {
		img, err = goheif.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, &DecodeError{Reason: "unreadable HEIC container", Err: err}
		}
		format = "heic"
		// HEIC keeps EXIF in its own box, not at the stream head.
		exifData, _ = goheif.ExtractExif(bytes.NewReader(raw))
	} else {
		img, format, err = image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, &DecodeError{Reason: "unsupported image container", Err: err}
		}
		exifData = raw
	}

	orientation := 1
	var takenAt *time.Time
	var lat, lng *float64
	if x, xerr := exif.Decode(bytes.NewReader(exifData)); xerr == nil {
		if tag, terr := x.Get(exif.Orientation); terr == nil {
			if v, verr := tag.Int(0); verr == nil {
				orientation = v
			}
		}
		if ts, terr := x.DateTime(); terr == nil {
			takenAt = &ts
		}
		if la, lo, gerr := x.LatLong(); gerr == nil {
			lat, lng = &la, &lo
		}
	}

	return &CaptureImage{
		Img:       applyOrientation(img, orientation),
		Format:    format,
		TakenAt:   takenAt,
		Latitude:  lat,
		Longitude: lng,
	}, nil
}

// ExtractGPS reads the capture coordinates from the photo's EXIF GPS tags.
// Both returns are nil when the photo carries no usable fix.
func ExtractGPS(raw []byte) (lat, lng *float64) {
	exifData := raw
	if isHEIC(raw) {
		data, err := goheif.ExtractExif(bytes.NewReader(raw))
		if err != nil {
			return nil, nil
		}
		exifData = data
	}
	x, err := exif.Decode(bytes.NewReader(exifData))
	if err != nil {
		return nil, nil
	}
	la, lo, err := x.LatLong()
	if err != nil {
		return nil, nil
	}
	return &la, &lo
}

// applyOrientation undoes the camera rotation recorded in EXIF tag 274 so
// downstream stages always see an upright display.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

var heicBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heif"), []byte("mif1"), []byte("msf1"),
}

func isHEIC(raw []byte) bool {
	if len(raw) < 12 || !bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	brand := raw[8:12]
	for _, b := range heicBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}
