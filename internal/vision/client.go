// Package vision builds the multimodal model client used as the OCR
// pipeline's secondary recognizer.
package vision

import (
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hygrolog/hygrolog/internal/config"
)

// NewModel constructs the configured provider's vision model client.
func NewModel(cfg config.VisionConfig) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAI(cfg)
	case "ollama":
		return newOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}

func newOpenAI(cfg config.VisionConfig) (llms.Model, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newOllama(cfg config.VisionConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
