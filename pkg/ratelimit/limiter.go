package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter paces outbound calls to the remote vision providers. Each
// provider gets a minimum interval between requests plus exponential
// backoff after repeated failures, so a misbehaving upstream never gets
// hammered by a batch of uploads.
type Limiter struct {
	mu        sync.Mutex
	providers map[string]*providerState
}

type providerState struct {
	name         string
	minInterval  time.Duration
	lastRequest  time.Time
	backoffUntil time.Time
	requestCount int64
	errorCount   int64
}

// NewLimiter seeds limiters for the supported vision providers. Hosted
// APIs get a conservative interval; a local Ollama only needs enough
// spacing to keep one generation from starving the next.
func NewLimiter() *Limiter {
	return &Limiter{
		providers: map[string]*providerState{
			"openai": {
				name:        "openai",
				minInterval: 500 * time.Millisecond,
			},
			"ollama": {
				name:        "ollama",
				minInterval: 100 * time.Millisecond,
			},
		},
	}
}

// Wait blocks until a request to the provider is allowed or the context
// is cancelled.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	l.mu.Lock()
	state, exists := l.providers[provider]
	if !exists {
		l.mu.Unlock()
		return fmt.Errorf("unknown provider: %s", provider)
	}

	now := time.Now()

	if now.Before(state.backoffUntil) {
		waitTime := state.backoffUntil.Sub(now)
		l.mu.Unlock()

		select {
		case <-time.After(waitTime):
			return l.Wait(ctx, provider)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	sinceLast := now.Sub(state.lastRequest)
	if sinceLast < state.minInterval {
		waitTime := state.minInterval - sinceLast
		l.mu.Unlock()

		select {
		case <-time.After(waitTime):
			l.mu.Lock()
			state.lastRequest = time.Now()
			state.requestCount++
			l.mu.Unlock()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	state.lastRequest = now
	state.requestCount++
	l.mu.Unlock()
	return nil
}

// RecordError counts a failed call; more than three consecutive failures
// start an exponential backoff capped at five minutes.
func (l *Limiter) RecordError(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, exists := l.providers[provider]
	if !exists {
		return
	}

	state.errorCount++
	if state.errorCount > 3 {
		backoff := time.Duration(state.errorCount) * 30 * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}
		state.backoffUntil = time.Now().Add(backoff)
	}
}

// RecordSuccess resets the provider's consecutive error count.
func (l *Limiter) RecordSuccess(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, exists := l.providers[provider]; exists {
		state.errorCount = 0
	}
}

// ProviderStats is a point-in-time snapshot of one provider's counters.
type ProviderStats struct {
	RequestCount int64
	ErrorCount   int64
	LastRequest  time.Time
	InBackoff    bool
	BackoffUntil time.Time
}

// Stats returns counters for every known provider.
func (l *Limiter) Stats() map[string]ProviderStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]ProviderStats, len(l.providers))
	for name, state := range l.providers {
		stats[name] = ProviderStats{
			RequestCount: state.requestCount,
			ErrorCount:   state.errorCount,
			LastRequest:  state.lastRequest,
			InBackoff:    time.Now().Before(state.backoffUntil),
			BackoffUntil: state.backoffUntil,
		}
	}
	return stats
}
