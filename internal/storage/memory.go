package storage

import (
	"context"
	"sync"

	"github.com/hygrolog/hygrolog/pkg/reading"
)

// MemoryRecordStore is an in-process RecordStore used in tests and for
// running the server without a database.
type MemoryRecordStore struct {
	mu   sync.RWMutex
	recs []*reading.Record
}

// NewMemoryRecordStore returns an empty in-memory store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{}
}

// Append implements RecordStore.
func (m *MemoryRecordStore) Append(_ context.Context, rec *reading.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	m.recs = append([]*reading.Record{&clone}, m.recs...)
	return nil
}

// ReadAll implements RecordStore.
func (m *MemoryRecordStore) ReadAll(_ context.Context) ([]*reading.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*reading.Record, len(m.recs))
	for i, r := range m.recs {
		clone := *r
		out[i] = &clone
	}
	return out, nil
}

// ReplaceAll implements RecordStore.
func (m *MemoryRecordStore) ReplaceAll(_ context.Context, recs []*reading.Record) error {
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = make([]*reading.Record, len(recs))
	for i, r := range recs {
		clone := *r
		m.recs[i] = &clone
	}
	return nil
}

// Health implements RecordStore.
func (m *MemoryRecordStore) Health(_ context.Context) error { return nil }
