package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records the request and replies with a canned completion.
type fakeModel struct {
	response string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.response, f.err
}

func TestParseVisionResponse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectErr    bool
		expectedTemp *float64
		expectedHumi *float64
	}{
		{
			name:         "plain object",
			input:        `{"temperature": 23.5, "humidity": 58}`,
			expectedTemp: fptr(23.5),
			expectedHumi: fptr(58),
		},
		{
			name:         "code fenced",
			input:        "```json\n{\"temperature\": 21.4, \"humidity\": 61}\n```",
			expectedTemp: fptr(21.4),
			expectedHumi: fptr(61),
		},
		{
			name:         "prose around the object",
			input:        `The display reads {"temperature": 19, "humidity": 44} as requested.`,
			expectedTemp: fptr(19),
			expectedHumi: fptr(44),
		},
		{
			name:         "string numbers with comma decimal",
			input:        `{"temperature": "23,5", "humidity": "58"}`,
			expectedTemp: fptr(23.5),
			expectedHumi: fptr(58),
		},
		{
			name:         "null humidity",
			input:        `{"temperature": 23.5, "humidity": null}`,
			expectedTemp: fptr(23.5),
			expectedHumi: nil,
		},
		{
			name:      "no JSON at all",
			input:     "I cannot read this image.",
			expectErr: true,
		},
		{
			name:      "malformed object",
			input:     `{"temperature": }`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := parseVisionResponse(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expectedTemp == nil {
				assert.Nil(t, pair.Temperature)
			} else {
				require.NotNil(t, pair.Temperature)
				assert.InDelta(t, *tt.expectedTemp, *pair.Temperature, 1e-9)
			}
			if tt.expectedHumi == nil {
				assert.Nil(t, pair.Humidity)
			} else {
				require.NotNil(t, pair.Humidity)
				assert.InDelta(t, *tt.expectedHumi, *pair.Humidity, 1e-9)
			}
		})
	}
}

func TestLLMResolver_Resolve(t *testing.T) {
	model := &fakeModel{response: `{"temperature": 23.1, "humidity": 58}`}
	resolver := NewLLMResolver(model, 0)

	pair, err := resolver.Resolve(context.Background(), []byte("png-bytes"), Hint{
		Temperature:       fptr(99.9),
		TemperatureTokens: []string{"99.9C"},
	})
	require.NoError(t, err)
	require.NotNil(t, pair.Temperature)
	assert.InDelta(t, 23.1, *pair.Temperature, 1e-9)
	require.NotNil(t, pair.Humidity)
	assert.InDelta(t, 58, *pair.Humidity, 1e-9)

	// The request carries the image first and the prompt second.
	require.Len(t, model.messages, 1)
	require.Len(t, model.messages[0].Parts, 2)
	bin, ok := model.messages[0].Parts[0].(llms.BinaryContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", bin.MIMEType)
	assert.Equal(t, []byte("png-bytes"), bin.Data)
	_, ok = model.messages[0].Parts[1].(llms.TextContent)
	assert.True(t, ok)
}

func TestLLMResolver_ModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream unavailable")}
	resolver := NewLLMResolver(model, 0)

	pair, err := resolver.Resolve(context.Background(), []byte("png"), Hint{})
	assert.Error(t, err)
	assert.Nil(t, pair)
}

func TestBuildVisionPrompt_TruncatesHintTokens(t *testing.T) {
	hint := Hint{
		TemperatureTokens: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
	}
	prompt, err := buildVisionPrompt(hint)
	require.NoError(t, err)
	assert.Contains(t, prompt, `"f"`)
	assert.NotContains(t, prompt, `"g"`)
	assert.Contains(t, prompt, "ONLY this JSON shape")
}
