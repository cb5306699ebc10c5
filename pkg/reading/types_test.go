package reading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sptr(s string) *string   { return &s }
func fptr(v float64) *float64 { return &v }

func TestNewExtractionResult(t *testing.T) {
	tests := []struct {
		name        string
		temperature *float64
		humidity    *float64
		wantDisplay *string
	}{
		{
			name:        "both values derive display string",
			temperature: fptr(23.5),
			humidity:    fptr(58),
			wantDisplay: sptr("23.5 / 58"),
		},
		{
			name:        "integer temperature keeps no trailing zeros",
			temperature: fptr(21),
			humidity:    fptr(60.5),
			wantDisplay: sptr("21 / 60.5"),
		},
		{
			name:        "missing temperature leaves display nil",
			temperature: nil,
			humidity:    fptr(58),
			wantDisplay: nil,
		},
		{
			name:        "missing humidity leaves display nil",
			temperature: fptr(23.5),
			humidity:    nil,
			wantDisplay: nil,
		},
		{
			name:        "nothing recovered",
			temperature: nil,
			humidity:    nil,
			wantDisplay: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewExtractionResult(sptr("2026-08-30"), tt.temperature, tt.humidity)
			require.NoError(t, res.Validate())
			if tt.wantDisplay == nil {
				assert.Nil(t, res.DisplayString)
				assert.False(t, res.Complete())
			} else {
				require.NotNil(t, res.DisplayString)
				assert.Equal(t, *tt.wantDisplay, *res.DisplayString)
				assert.True(t, res.Complete())
			}
		})
	}
}

func TestExtractionResultValidate(t *testing.T) {
	bad := ExtractionResult{DisplayString: sptr("23.5 / 58")}
	assert.Error(t, bad.Validate())

	good := NewExtractionResult(nil, fptr(23.5), fptr(58))
	assert.NoError(t, good.Validate())
}

func TestRecordValidate(t *testing.T) {
	valid := func() Record {
		return Record{
			ID:           "rec-1",
			Date:         "2026-08-30",
			TemperatureC: fptr(23.5),
			HumidityPct:  fptr(58),
			CreatedAt:    time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Record) {}},
		{name: "missing id", mutate: func(r *Record) { r.ID = "" }, wantErr: true},
		{name: "missing date", mutate: func(r *Record) { r.Date = "" }, wantErr: true},
		{name: "wrong date layout", mutate: func(r *Record) { r.Date = "30.08.2026" }, wantErr: true},
		{name: "humidity above 100", mutate: func(r *Record) { r.HumidityPct = fptr(101) }, wantErr: true},
		{name: "humidity below 0", mutate: func(r *Record) { r.HumidityPct = fptr(-1) }, wantErr: true},
		{name: "nil readings allowed", mutate: func(r *Record) { r.TemperatureC = nil; r.HumidityPct = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	rg := Range{Min: -10, Max: 50}
	assert.True(t, rg.Contains(-10))
	assert.True(t, rg.Contains(50))
	assert.True(t, rg.Contains(0))
	assert.False(t, rg.Contains(-10.1))
	assert.False(t, rg.Contains(50.1))
}
