package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoadMadrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestLocalize(t *testing.T) {
	madrid := mustLoadMadrid(t)

	t.Run("ordinary winter hour", func(t *testing.T) {
		got, err := Localize(2024, 1, 15, 8, madrid)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, madrid), got)
		_, offset := got.Zone()
		assert.Equal(t, 3600, offset) // CET
	})

	t.Run("ordinary summer hour", func(t *testing.T) {
		got, err := Localize(2024, 7, 1, 14, madrid)
		require.NoError(t, err)
		_, offset := got.Zone()
		assert.Equal(t, 7200, offset) // CEST
	})

	t.Run("spring forward gap shifts to next valid instant", func(t *testing.T) {
		// 2024-03-31 02:00 does not exist in Madrid; clocks jump 02:00 -> 03:00.
		got, err := Localize(2024, 3, 31, 2, madrid)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC), got.UTC())
		assert.Equal(t, 3, got.Hour())
	})

	t.Run("fall back ambiguity resolves to earlier instant", func(t *testing.T) {
		// 2024-10-27 02:00 occurs twice in Madrid. The earlier instant is
		// 02:00 CEST (00:00 UTC), consistent with an ascending hourly series.
		got, err := Localize(2024, 10, 27, 2, madrid)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Hour())
		assert.Equal(t, time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC), got.UTC())
	})

	t.Run("fall back day localizes to an ascending sequence", func(t *testing.T) {
		// Hours 0..4 on the fall-back day must map to strictly increasing
		// instants. The second occurrence of 02:00 (01:00 UTC) is the slot
		// the earlier-instant convention leaves unused.
		want := []time.Time{
			time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC),
			time.Date(2024, 10, 26, 23, 0, 0, 0, time.UTC),
			time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 10, 27, 2, 0, 0, 0, time.UTC),
			time.Date(2024, 10, 27, 3, 0, 0, 0, time.UTC),
		}
		for h, w := range want {
			got, err := Localize(2024, 10, 27, h, madrid)
			require.NoError(t, err)
			assert.Equal(t, w, got.UTC(), "hour %d", h)
		}
	})

	t.Run("invalid calendar day", func(t *testing.T) {
		_, err := Localize(2024, 2, 30, 10, madrid)
		assert.Error(t, err)
	})

	t.Run("invalid month", func(t *testing.T) {
		_, err := Localize(2024, 13, 1, 10, madrid)
		assert.Error(t, err)
	})

	t.Run("hour out of range", func(t *testing.T) {
		_, err := Localize(2024, 5, 1, 24, madrid)
		assert.Error(t, err)
	})

	t.Run("nil location", func(t *testing.T) {
		_, err := Localize(2024, 5, 1, 0, nil)
		assert.Error(t, err)
	})
}
