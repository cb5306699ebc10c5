package storage

import (
	"context"

	"github.com/hygrolog/hygrolog/pkg/reading"
)

// RecordStore is the spreadsheet-shaped table the application keeps its
// measurements in: append-and-read with an occasional wholesale replace
// after in-place edits. No transactional coupling with the object store
// is promised: a photo can be uploaded and its row append still fail.
type RecordStore interface {
	Append(ctx context.Context, rec *reading.Record) error
	ReadAll(ctx context.Context) ([]*reading.Record, error)
	ReplaceAll(ctx context.Context, recs []*reading.Record) error
	Health(ctx context.Context) error
}

// ObjectStore accepts photo bytes and returns a URL the stored object can
// be retrieved from later.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, mimeType, nameHint string) (string, error)
}

// CredentialProvider yields the capability token that authorizes object
// uploads. The token is an opaque bearer, passed through, never inspected.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StorageMetrics provides telemetry for storage operations
type StorageMetrics struct {
	OperationType string
	Duration      int64 // nanoseconds
	Success       bool
	Backend       string
	Error         error
}

// MetricsCollector receives storage operation metrics
type MetricsCollector interface {
	RecordMetric(metric StorageMetrics)
}
