package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	producedAt := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	rec := domain.SchoolExposureRecord{
		SchoolID:      "esc-001",
		PollutantName: "no2",
		Date:          "2024-03-01",
		ValueAgg:      30.0,
		ValidHours:    20,
		CoveragePct:   83.33333333333334,
		StationCount:  1,
		Method:        domain.MethodNearest,
	}

	msg, err := serializeToMessage(rec, producedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("esc-001|no2|2024-03-01"), msg.Key)
	assert.Contains(t, string(msg.Value), `"school_id":"esc-001"`)
	assert.Contains(t, string(msg.Value), `"value_agg":30`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "method", msg.Headers[0].Key)
	assert.Equal(t, []byte("nearest"), msg.Headers[0].Value)
	assert.Equal(t, "produced_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-03-15T09:30:00Z"), msg.Headers[1].Value)
}
