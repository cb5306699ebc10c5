package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver registration.
	_ "github.com/lib/pq"

	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS measurements (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL,
	temperature_c DOUBLE PRECISION,
	humidity_pct  DOUBLE PRECISION,
	feels_like_c  DOUBLE PRECISION,
	alarm_tier    TEXT NOT NULL,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	photo_url     TEXT NOT NULL DEFAULT '',
	place         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
)`

// PostgresRecordStore keeps measurement rows in a Postgres table.
type PostgresRecordStore struct {
	db      *sql.DB
	metrics MetricsCollector
}

// NewPostgresRecordStore connects, verifies the connection and creates
// the measurements table when missing.
func NewPostgresRecordStore(databaseURL string, metrics MetricsCollector) (*PostgresRecordStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	lg := logging.GetStorageLogger("connect", "postgres")
	lg.Info().Msg("record store ready")
	return &PostgresRecordStore{db: db, metrics: metrics}, nil
}

// Append inserts one record.
func (p *PostgresRecordStore) Append(ctx context.Context, rec *reading.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	start := time.Now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO measurements
			(id, date, temperature_c, humidity_pct, feels_like_c, alarm_tier, latitude, longitude, photo_url, place, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Date,
		nullableFloat(rec.TemperatureC), nullableFloat(rec.HumidityPct), nullableFloat(rec.FeelsLikeC),
		string(rec.Tier), nullableFloat(rec.Latitude), nullableFloat(rec.Longitude),
		rec.PhotoURL, rec.Place, rec.CreatedAt,
	)
	p.record("append", start, err)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ReadAll returns every record, newest first.
func (p *PostgresRecordStore) ReadAll(ctx context.Context) ([]*reading.Record, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, date, temperature_c, humidity_pct, feels_like_c, alarm_tier, latitude, longitude, photo_url, place, created_at
		FROM measurements
		ORDER BY created_at DESC`)
	p.record("read_all", start, err)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var out []*reading.Record
	for rows.Next() {
		var (
			rec                        reading.Record
			temp, humi, feel, lat, lng sql.NullFloat64
			tier                       string
		)
		if err := rows.Scan(&rec.ID, &rec.Date, &temp, &humi, &feel, &tier, &lat, &lng, &rec.PhotoURL, &rec.Place, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.TemperatureC = floatPtr(temp)
		rec.HumidityPct = floatPtr(humi)
		rec.FeelsLikeC = floatPtr(feel)
		rec.Tier = reading.Tier(tier)
		rec.Latitude = floatPtr(lat)
		rec.Longitude = floatPtr(lng)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// ReplaceAll swaps the whole table for the given rows in one transaction.
// Used after in-place edits in the review table.
func (p *PostgresRecordStore) ReplaceAll(ctx context.Context, recs []*reading.Record) error {
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return err
		}
	}

	start := time.Now()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements`); err != nil {
		p.record("replace_all", start, err)
		return fmt.Errorf("clear records: %w", err)
	}
	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO measurements
				(id, date, temperature_c, humidity_pct, feels_like_c, alarm_tier, latitude, longitude, photo_url, place, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rec.ID, rec.Date,
			nullableFloat(rec.TemperatureC), nullableFloat(rec.HumidityPct), nullableFloat(rec.FeelsLikeC),
			string(rec.Tier), nullableFloat(rec.Latitude), nullableFloat(rec.Longitude),
			rec.PhotoURL, rec.Place, rec.CreatedAt,
		); err != nil {
			p.record("replace_all", start, err)
			return fmt.Errorf("insert replacement record: %w", err)
		}
	}

	err = tx.Commit()
	p.record("replace_all", start, err)
	return err
}

// Health pings the database.
func (p *PostgresRecordStore) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *PostgresRecordStore) Close() error {
	return p.db.Close()
}

func (p *PostgresRecordStore) record(op string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordMetric(StorageMetrics{
		OperationType: op,
		Duration:      time.Since(start).Nanoseconds(),
		Success:       err == nil,
		Backend:       "postgres",
		Error:         err,
	})
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
