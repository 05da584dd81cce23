package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

func openTestStore(t *testing.T) *ReadingStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReading(station string, hour int, value float64) domain.Reading {
	madrid, _ := time.LoadLocation(domain.DefaultTimezone)
	return domain.Reading{
		StationID:     station,
		PollutantCode: "8",
		Timestamp:     time.Date(2024, 5, 14, hour, 0, 0, 0, madrid),
		Value:         value,
		Validity:      true,
	}
}

func TestReadingStore_InsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := []domain.Reading{
		testReading("43", 0, 31.0),
		testReading("43", 1, 28.5),
		testReading("4", 0, 12.0),
	}
	n, err := s.InsertReadings(ctx, in)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := s.Readings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Canonical order: station "4" sorts before "43".
	assert.Equal(t, "4", got[0].StationID)
	assert.Equal(t, "43", got[1].StationID)
	assert.Equal(t, 12.0, got[0].Value)
	assert.True(t, got[0].Validity)
	assert.Equal(t, "2024-05-14", got[0].Date())
	assert.Equal(t, 0, got[0].Hour())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestReadingStore_IgnoresKeyCollisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.InsertReadings(ctx, []domain.Reading{testReading("43", 5, 31.0)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Same slot, different value: ignored, first write wins.
	n, err = s.InsertReadings(ctx, []domain.Reading{testReading("43", 5, 99.0)})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := s.Readings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 31.0, got[0].Value)

	dups, err := s.DuplicateSlots(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, dups)
}

func TestReadingStore_Reset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertReadings(ctx, []domain.Reading{testReading("43", 0, 1.0)})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestReadingStore_TimestampRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := testReading("43", 15, 20.0)
	_, err := s.InsertReadings(ctx, []domain.Reading{in})
	require.NoError(t, err)

	got, err := s.Readings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Offset survives the round trip even though the zone name does not.
	assert.True(t, got[0].Timestamp.Equal(in.Timestamp))
	assert.Equal(t, 15, got[0].Hour())
	_, offset := got[0].Timestamp.Zone()
	assert.Equal(t, 7200, offset)
}
