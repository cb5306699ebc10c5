package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/hygrolog/hygrolog/pkg/logging"
)

// Recognizer produces text tokens from a preprocessed region image. The
// pipeline only depends on this interface so tests can swap in a mock.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte, role Role) ([]Token, error)
}

// TesseractRecognizer runs a local Tesseract engine through gosseract with
// a per-role character whitelist. The underlying engine is expensive to
// construct and not safe for concurrent use, so one client is built
// lazily for the life of the process and every call is serialized on it.
type TesseractRecognizer struct {
	language string
	cfg      Config
	logger   zerolog.Logger

	once    sync.Once
	mu      sync.Mutex
	client  *gosseract.Client
	initErr error
}

// NewTesseractRecognizer returns a recognizer for the given Tesseract
// language code (e.g. "eng"). The engine itself is not created until the
// first Recognize call.
func NewTesseractRecognizer(language string, cfg Config) *TesseractRecognizer {
	return &TesseractRecognizer{
		language: language,
		cfg:      cfg,
		logger:   logging.GetPipelineLogger("recognize"),
	}
}

func (t *TesseractRecognizer) init() {
	client := gosseract.NewClient()
	if err := client.SetLanguage(t.language); err != nil {
		t.initErr = fmt.Errorf("set language %q: %w", t.language, err)
		_ = client.Close()
		return
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		t.initErr = fmt.Errorf("set page segmentation mode: %w", err)
		_ = client.Close()
		return
	}
	t.client = client
	t.logger.Info().Str("language", t.language).Msg("tesseract engine initialized")
}

// Recognize runs OCR over one preprocessed region. It returns the
// recognized fragments as tokens tagged with the region role; an empty
// slice is a normal outcome for a blank or unreadable region.
func (t *TesseractRecognizer) Recognize(ctx context.Context, png []byte, role Role) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.once.Do(t.init)
	if t.initErr != nil {
		return nil, t.initErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetWhitelist(t.whitelistFor(role)); err != nil {
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	if err := t.client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return nil, fmt.Errorf("ocr text: %w", err)
	}

	tokens := tokenize(text, role)
	t.logger.Debug().
		Str("role", role.String()).
		Int("tokens", len(tokens)).
		Msg("region recognized")
	return tokens, nil
}

// Close releases the engine. Safe to call when the lazy init never ran.
func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *TesseractRecognizer) whitelistFor(role Role) string {
	switch role {
	case RoleHumidity:
		return t.cfg.HumidityWhitelist
	case RoleTemperature:
		return t.cfg.TemperatureWhitelist
	default:
		return t.cfg.TemperatureWhitelist + t.cfg.HumidityWhitelist
	}
}

// tokenize splits raw engine output on whitespace into role-tagged tokens.
func tokenize(text string, role Role) []Token {
	fields := strings.Fields(text)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, Token{Text: f, Role: role})
	}
	return tokens
}

// MockRecognizer returns canned tokens per role; tests use it to drive
// the pipeline without a Tesseract installation.
type MockRecognizer struct {
	Tokens map[Role][]string
	Err    error
}

// Recognize implements Recognizer.
func (m *MockRecognizer) Recognize(_ context.Context, _ []byte, role Role) ([]Token, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]Token, 0, len(m.Tokens[role]))
	for _, s := range m.Tokens[role] {
		out = append(out, Token{Text: s, Role: role})
	}
	return out, nil
}
