package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_UnknownProvider(t *testing.T) {
	l := NewLimiter()
	err := l.Wait(context.Background(), "someothercloud")
	assert.Error(t, err)
}

func TestLimiter_EnforcesMinInterval(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "ollama"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "ollama"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.Wait(context.Background(), "openai"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "openai")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_BackoffAfterRepeatedErrors(t *testing.T) {
	l := NewLimiter()

	for i := 0; i < 5; i++ {
		l.RecordError("openai")
	}

	stats := l.Stats()["openai"]
	assert.Equal(t, int64(5), stats.ErrorCount)
	assert.True(t, stats.InBackoff)
	assert.True(t, stats.BackoffUntil.After(time.Now()))
}

func TestLimiter_SuccessResetsErrors(t *testing.T) {
	l := NewLimiter()

	l.RecordError("ollama")
	l.RecordError("ollama")
	l.RecordSuccess("ollama")

	assert.Equal(t, int64(0), l.Stats()["ollama"].ErrorCount)
}

func TestLimiter_CountsRequests(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "ollama"))
	require.NoError(t, l.Wait(ctx, "ollama"))

	assert.Equal(t, int64(2), l.Stats()["ollama"].RequestCount)
}

func TestLimiter_ErrorsOnUnknownProviderAreIgnored(t *testing.T) {
	l := NewLimiter()
	l.RecordError("nope")
	l.RecordSuccess("nope")
	_, ok := l.Stats()["nope"]
	assert.False(t, ok)
}
