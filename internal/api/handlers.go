package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hygrolog/hygrolog/internal/cache"
	"github.com/hygrolog/hygrolog/internal/storage"
	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/ocr"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	extractor cache.Extractor
	records   storage.RecordStore
	photos    storage.ObjectStore
	logger    zerolog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(extractor cache.Extractor, records storage.RecordStore, photos storage.ObjectStore) *Handlers {
	return &Handlers{
		extractor: extractor,
		records:   records,
		photos:    photos,
		logger:    logging.GetLogger("api"),
	}
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	if err := h.records.Health(c.Context()); err != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   "hygrolog",
		"version":   "0.1.0",
		"timestamp": time.Now().UTC(),
	})
}

// ExtractReading runs the OCR pipeline over an uploaded photo and returns
// the recovered values for the operator to review and correct.
func (h *Handlers) ExtractReading(c *fiber.Ctx) error {
	raw, _, err := h.imageFromForm(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Missing image",
			"details": err.Error(),
		})
	}

	result, err := h.extractor.Extract(c.Context(), raw)
	if err != nil {
		var decodeErr *ocr.DecodeError
		if errors.As(err, &decodeErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   "Unreadable image",
				"details": decodeErr.Error(),
			})
		}
		h.logger.Error().Err(err).Msg("extraction failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Extraction failed",
		})
	}

	return c.JSON(result)
}

// SaveRecordResponse is returned after a successful save.
type SaveRecordResponse struct {
	Record *reading.Record `json:"record"`
}

// SaveRecord uploads the original photo to the object store, derives the
// feels-like value and alarm tier, and appends the row. The upload and
// the append are not transactional: a failed append can leave an orphan
// photo behind, matching the store's best-effort contract.
func (h *Handlers) SaveRecord(c *fiber.Ctx) error {
	raw, mimeType, err := h.imageFromForm(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Missing image",
			"details": err.Error(),
		})
	}

	date := strings.TrimSpace(c.FormValue("date"))
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	temp, err := optionalFloat(c.FormValue("temperature"))
	if err != nil {
		return badField(c, "temperature", err)
	}
	humi, err := optionalFloat(c.FormValue("humidity"))
	if err != nil {
		return badField(c, "humidity", err)
	}

	lat, lng := ocr.ExtractGPS(raw)

	rec := &reading.Record{
		ID:           uuid.New().String(),
		Date:         date,
		TemperatureC: temp,
		HumidityPct:  humi,
		Tier:         reading.TierNormal,
		Latitude:     lat,
		Longitude:    lng,
		Place:        strings.TrimSpace(c.FormValue("place")),
		CreatedAt:    time.Now().UTC(),
	}
	if temp != nil && humi != nil {
		feels := reading.HeatIndexC(*temp, *humi)
		rec.FeelsLikeC = &feels
		rec.Tier = reading.ClassifyTier(feels)
	}
	if err := rec.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}

	url, err := h.photos.Put(c.Context(), raw, mimeType, "env_photo")
	if err != nil {
		h.logger.Error().Err(err).Msg("photo upload failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Photo upload failed",
		})
	}
	rec.PhotoURL = url

	if err := h.records.Append(c.Context(), rec); err != nil {
		h.logger.Error().Err(err).Str("photo_url", url).Msg("record append failed after upload")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Record save failed",
		})
	}

	h.logger.Info().Str("record_id", rec.ID).Str("tier", string(rec.Tier)).Msg("record saved")
	return c.Status(fiber.StatusCreated).JSON(SaveRecordResponse{Record: rec})
}

// ListRecords returns every saved measurement, newest first.
func (h *Handlers) ListRecords(c *fiber.Ctx) error {
	recs, err := h.records.ReadAll(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("record listing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Record listing failed",
		})
	}
	if recs == nil {
		recs = []*reading.Record{}
	}
	return c.JSON(fiber.Map{"records": recs, "count": len(recs)})
}

// ReplaceRecords swaps the whole table after in-place edits in the
// review UI.
func (h *Handlers) ReplaceRecords(c *fiber.Ctx) error {
	var body struct {
		Records []*reading.Record `json:"records"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if err := h.records.ReplaceAll(c.Context(), body.Records); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Replace failed",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"count": len(body.Records)})
}

// ExportCSV streams every record as a CSV download.
func (h *Handlers) ExportCSV(c *fiber.Ctx) error {
	recs, err := h.records.ReadAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Record listing failed",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="measurements_%s.csv"`, time.Now().Format("20060102_150405")))

	w := csv.NewWriter(c.Response().BodyWriter())
	_ = w.Write([]string{"date", "temperature_c", "humidity_pct", "feels_like_c", "alarm_tier", "lat", "lng", "photo_url", "place"})
	for _, r := range recs {
		_ = w.Write([]string{
			r.Date,
			formatFloat(r.TemperatureC),
			formatFloat(r.HumidityPct),
			formatFloat(r.FeelsLikeC),
			string(r.Tier),
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			r.PhotoURL,
			r.Place,
		})
	}
	w.Flush()
	return w.Error()
}

func (h *Handlers) imageFromForm(c *fiber.Ctx) ([]byte, string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("form field %q required: %w", "image", err)
	}
	f, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return raw, mimeType, nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func badField(c *fiber.Ctx, field string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   fmt.Sprintf("Invalid %s", field),
		"details": err.Error(),
	})
}
