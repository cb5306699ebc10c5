package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/ratelimit"
)

// Hint carries the primary recognizer's attempt to the vision model so it
// can cross-check the image instead of re-deriving from scratch.
type Hint struct {
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	TemperatureTokens []string `json:"temperature_tokens,omitempty"`
	HumidityTokens    []string `json:"humidity_tokens,omitempty"`
}

// PairResult is the vision model's verdict; either field may be nil.
type PairResult struct {
	Temperature *float64
	Humidity    *float64
}

// VisionResolver is the secondary recognizer: given the cropped display
// and the primary candidates as hints, it returns its own reading pair.
// Implementations must treat failure as a normal outcome; the pipeline
// falls back to the primary candidates on any error.
type VisionResolver interface {
	Resolve(ctx context.Context, png []byte, hint Hint) (*PairResult, error)
}

// LLMResolver asks a multimodal model for a strict-JSON reading of the
// display photo.
type LLMResolver struct {
	model    llms.Model
	timeout  time.Duration
	logger   zerolog.Logger
	limiter  *ratelimit.Limiter
	provider string
}

// NewLLMResolver wraps a langchaingo vision model. A zero timeout falls
// back to ten seconds.
func NewLLMResolver(model llms.Model, timeout time.Duration) *LLMResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMResolver{
		model:   model,
		timeout: timeout,
		logger:  logging.GetPipelineLogger("fallback"),
	}
}

// WithRateLimit paces calls through the given limiter under the provider
// name and feeds call outcomes back into its backoff.
func (r *LLMResolver) WithRateLimit(limiter *ratelimit.Limiter, provider string) *LLMResolver {
	r.limiter = limiter
	r.provider = provider
	return r
}

const maxHintTokens = 6

// Resolve sends the image plus a JSON-only instruction prompt and parses
// the answer permissively. Transport or parse failures surface as errors;
// the caller decides what to fall back to.
func (r *LLMResolver) Resolve(ctx context.Context, png []byte, hint Hint) (*PairResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt, err := buildVisionPrompt(hint)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.provider); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	completion, err := r.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/png", png),
				llms.TextPart(prompt),
			},
		},
	}, llms.WithTemperature(0))
	if err != nil {
		if r.limiter != nil {
			r.limiter.RecordError(r.provider)
		}
		return nil, fmt.Errorf("vision model call: %w", err)
	}
	if r.limiter != nil {
		r.limiter.RecordSuccess(r.provider)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	pair, err := parseVisionResponse(completion.Choices[0].Content)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Interface("temperature", pair.Temperature).
		Interface("humidity", pair.Humidity).
		Msg("vision model resolved reading")
	return pair, nil
}

func buildVisionPrompt(hint Hint) (string, error) {
	if len(hint.TemperatureTokens) > maxHintTokens {
		hint.TemperatureTokens = hint.TemperatureTokens[:maxHintTokens]
	}
	if len(hint.HumidityTokens) > maxHintTokens {
		hint.HumidityTokens = hint.HumidityTokens[:maxHintTokens]
	}
	hintJSON, err := json.Marshal(hint)
	if err != nil {
		return "", err
	}

	return `The image shows a digital thermometer/hygrometer display.
The local OCR candidates and tokens below are hints only; judge the final answer from the image.
Return ONLY this JSON shape, no code fences, no explanation, no extra keys:

{"temperature": 23.5, "humidity": 58}

Rules:
- Strip unit symbols, numbers only.
- Keep the decimal point if the display shows one.
- If the OCR hint contradicts the image, correct it from the image.
- Use null for a value that is not readable.

Hints: ` + string(hintJSON), nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseVisionResponse tolerates code fences, prose around the object and
// numbers delivered as strings; models do all three.
func parseVisionResponse(text string) (*PairResult, error) {
	t := strings.TrimSpace(text)
	t = strings.Trim(t, "`")
	m := jsonObjectRe.FindString(t)
	if m == "" {
		return nil, fmt.Errorf("no JSON object in vision response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(m), &raw); err != nil {
		return nil, fmt.Errorf("parse vision response: %w", err)
	}

	return &PairResult{
		Temperature: coerceNumber(raw["temperature"]),
		Humidity:    coerceNumber(raw["humidity"]),
	}, nil
}

func coerceNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", "."))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}
