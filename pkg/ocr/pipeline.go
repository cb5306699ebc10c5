package ocr

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

// Pipeline owns one extraction chain: normalizer, locator, splitter,
// preprocessor, primary recognizer, numeric extractor, optional secondary
// resolver and date recovery. It is stateless per call; the only shared
// state is the injected recognizer's engine handle.
type Pipeline struct {
	cfg        Config
	locator    *Locator
	recognizer Recognizer
	resolver   VisionResolver
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPipeline wires a pipeline. The resolver may be nil, in which case
// the secondary fallback stage is skipped entirely.
func NewPipeline(cfg Config, recognizer Recognizer, resolver VisionResolver) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		locator:    NewLocator(),
		recognizer: recognizer,
		resolver:   resolver,
		logger:     logging.GetLogger("ocr"),
		now:        time.Now,
	}
}

// Extract turns one photo into an ExtractionResult. The only error it
// returns is a *DecodeError for unreadable input bytes; every later
// failure degrades to nil fields in the result instead.
func (p *Pipeline) Extract(ctx context.Context, raw []byte) (reading.ExtractionResult, error) {
	capture, err := Normalize(raw)
	if err != nil {
		return reading.ExtractionResult{}, err
	}

	located := p.locator.Locate(capture.Img)

	tempTokens, humiTokens := p.recognizeRegions(ctx, located)

	tempCand := extractNumber(tempTokens, RoleTemperature, nil, p.cfg)
	humiCand := extractNumber(humiTokens, RoleHumidity, nil, p.cfg)

	// A second chance from the unsplit frame before paying for the
	// remote model: some displays print both values on one line that
	// the split cut in half.
	var fullTokens []Token
	if tempCand == nil || humiCand == nil {
		fullTokens = p.recognizeFull(ctx, located)
		if tempCand == nil {
			tempCand = extractNumber(nil, RoleTemperature, fullTokens, p.cfg)
		}
		if humiCand == nil {
			humiCand = extractNumber(nil, RoleHumidity, fullTokens, p.cfg)
		}
	}

	tempVal := candidateValue(tempCand)
	humiVal := candidateValue(humiCand)

	if p.needsSecondary(tempVal, humiVal) && p.resolver != nil {
		tempVal, humiVal = p.resolveSecondary(ctx, located, tempVal, humiVal, tempTokens, humiTokens)
	}

	// Printed dates often sit outside the value regions, so the full
	// frame's tokens are searched too when a full pass happened.
	dateTokens := make([]Token, 0, len(tempTokens)+len(humiTokens)+len(fullTokens))
	dateTokens = append(dateTokens, tempTokens...)
	dateTokens = append(dateTokens, humiTokens...)
	dateTokens = append(dateTokens, fullTokens...)
	date := extractDate(capture, dateTokens, p.now)

	result := reading.NewExtractionResult(&date, tempVal, humiVal)
	p.logger.Info().
		Interface("temperature", tempVal).
		Interface("humidity", humiVal).
		Str("date", date).
		Bool("complete", result.Complete()).
		Msg("extraction finished")
	return result, nil
}

// recognizeRegions tries each configured split until both regions produce
// recognizer output. A detected separator line is tried first; the fixed
// ratios then run in their documented order, and the last attempt's
// tokens are kept even when one side stayed empty.
func (p *Pipeline) recognizeRegions(ctx context.Context, located image.Image) ([]Token, []Token) {
	ratios := p.cfg.SplitRatios
	if sep, ok := findSeparator(located, p.cfg); ok {
		ratios = append([]float64{sep}, ratios...)
	}

	var tempTokens, humiTokens []Token
	for _, ratio := range ratios {
		top, bottom := splitDisplay(located, ratio, p.cfg.SplitMargin)
		tempTokens = p.recognizeRegion(ctx, top)
		humiTokens = p.recognizeRegion(ctx, bottom)
		if len(tempTokens) > 0 && len(humiTokens) > 0 {
			p.logger.Debug().Float64("ratio", ratio).Msg("split accepted")
			break
		}
	}
	return tempTokens, humiTokens
}

// recognizeRegion preprocesses and recognizes one region. Both failure
// modes are soft: an unreadable region simply contributes no tokens.
func (p *Pipeline) recognizeRegion(ctx context.Context, region Region) []Token {
	png, err := preprocess(region.Img, p.cfg)
	if err != nil {
		p.logger.Warn().Err(err).Str("role", region.Role.String()).Msg("region preprocessing failed")
		return nil
	}
	tokens, err := p.recognizer.Recognize(ctx, png, region.Role)
	if err != nil {
		p.logger.Warn().Err(err).Str("role", region.Role.String()).Msg("region recognition failed")
		return nil
	}
	return tokens
}

func (p *Pipeline) recognizeFull(ctx context.Context, located image.Image) []Token {
	png, err := preprocess(located, p.cfg)
	if err != nil {
		return nil
	}
	tokens, err := p.recognizer.Recognize(ctx, png, RoleFull)
	if err != nil {
		p.logger.Warn().Err(err).Msg("full-frame recognition failed")
		return nil
	}
	return tokens
}

// needsSecondary is the invocation gate for the vision model: only a
// missing or implausible primary value justifies the network round trip.
func (p *Pipeline) needsSecondary(tempVal, humiVal *float64) bool {
	if tempVal == nil || humiVal == nil {
		return true
	}
	return !p.cfg.TemperatureRange.Contains(*tempVal) || !p.cfg.HumidityRange.Contains(*humiVal)
}

// resolveSecondary consults the vision model and takes its values as
// authoritative field by field, keeping the primary candidate wherever the
// model abstained or the call failed outright. Failures are logged and
// recovered; degraded values beat no values.
func (p *Pipeline) resolveSecondary(ctx context.Context, located image.Image, tempVal, humiVal *float64, tempTokens, humiTokens []Token) (*float64, *float64) {
	png, err := encodePNG(located)
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not encode frame for vision model")
		return tempVal, humiVal
	}

	pair, err := p.resolver.Resolve(ctx, png, Hint{
		Temperature:       tempVal,
		Humidity:          humiVal,
		TemperatureTokens: tokenTexts(tempTokens),
		HumidityTokens:    tokenTexts(humiTokens),
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("secondary recognizer failed, keeping primary candidates")
		return tempVal, humiVal
	}

	if pair.Temperature != nil && p.cfg.SecondaryTemperatureRange.Contains(*pair.Temperature) {
		tempVal = pair.Temperature
	}
	if pair.Humidity != nil && p.cfg.HumidityRange.Contains(*pair.Humidity) {
		humiVal = pair.Humidity
	}
	return tempVal, humiVal
}

func candidateValue(c *Candidate) *float64 {
	if c == nil {
		return nil
	}
	v := c.Value
	return &v
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Text)
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
