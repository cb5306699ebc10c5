package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hygrolog/hygrolog/pkg/reading"
)

func fptr(v float64) *float64 { return &v }

func testRecord(id, date string) *reading.Record {
	return &reading.Record{
		ID:           id,
		Date:         date,
		TemperatureC: fptr(23.5),
		HumidityPct:  fptr(58),
		CreatedAt:    time.Now(),
	}
}

func TestMemoryRecordStore_AppendNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	require.NoError(t, store.Append(ctx, testRecord("a", "2026-08-28")))
	require.NoError(t, store.Append(ctx, testRecord("b", "2026-08-29")))
	require.NoError(t, store.Append(ctx, testRecord("c", "2026-08-30")))

	recs, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "a", recs[2].ID)
}

func TestMemoryRecordStore_AppendValidates(t *testing.T) {
	store := NewMemoryRecordStore()

	err := store.Append(context.Background(), &reading.Record{ID: "x", Date: "not-a-date"})
	assert.Error(t, err)

	recs, _ := store.ReadAll(context.Background())
	assert.Empty(t, recs)
}

func TestMemoryRecordStore_ReadAllReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	require.NoError(t, store.Append(ctx, testRecord("a", "2026-08-30")))

	recs, err := store.ReadAll(ctx)
	require.NoError(t, err)
	recs[0].Place = "mutated"

	again, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again[0].Place)
}

func TestMemoryRecordStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	require.NoError(t, store.Append(ctx, testRecord("old", "2026-08-01")))

	err := store.ReplaceAll(ctx, []*reading.Record{
		testRecord("n1", "2026-08-29"),
		testRecord("n2", "2026-08-30"),
	})
	require.NoError(t, err)

	recs, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "n1", recs[0].ID)
}

func TestMemoryRecordStore_ReplaceAllRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	require.NoError(t, store.Append(ctx, testRecord("keep", "2026-08-30")))

	err := store.ReplaceAll(ctx, []*reading.Record{
		testRecord("ok", "2026-08-29"),
		{ID: "bad", Date: "2026-08-30", HumidityPct: fptr(150)},
	})
	require.Error(t, err)

	// A rejected batch must not touch the existing data.
	recs, _ := store.ReadAll(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, "keep", recs[0].ID)
}

func TestMemoryRecordStore_Health(t *testing.T) {
	assert.NoError(t, NewMemoryRecordStore().Health(context.Background()))
}
