// Package cache memoizes extraction results by content hash. The OCR
// pipeline itself is stateless per call; deduplicating repeated uploads
// of the same photo is the caller's concern, so this wrapper sits outside
// the pipeline with a bounded LRU and an explicit size.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

// Extractor is the slice of the OCR pipeline the cache wraps.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (reading.ExtractionResult, error)
}

// MemoizingExtractor serves repeated byte-identical images from memory.
// Only successful extractions are cached; decode failures are cheap to
// reproduce and should stay visible.
type MemoizingExtractor struct {
	inner Extractor
	lru   *lru.Cache[string, reading.ExtractionResult]
}

// New wraps an extractor with an LRU of the given capacity.
func New(inner Extractor, capacity int) (*MemoizingExtractor, error) {
	c, err := lru.New[string, reading.ExtractionResult](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoizingExtractor{inner: inner, lru: c}, nil
}

// Extract implements Extractor.
func (m *MemoizingExtractor) Extract(ctx context.Context, raw []byte) (reading.ExtractionResult, error) {
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	if res, ok := m.lru.Get(key); ok {
		lg := logging.GetLogger("cache")
		lg.Debug().Str("key", key[:12]).Msg("extraction served from cache")
		return res, nil
	}

	res, err := m.inner.Extract(ctx, raw)
	if err != nil {
		return res, err
	}
	m.lru.Add(key, res)
	return res, nil
}

// Len reports how many results are currently cached.
func (m *MemoizingExtractor) Len() int { return m.lru.Len() }
