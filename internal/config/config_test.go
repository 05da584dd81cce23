package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/processed", cfg.OutputDir)
	assert.Equal(t, "data/processed/readings.db", cfg.SQLitePath)
	assert.Equal(t, "Europe/Madrid", cfg.Timezone)
	assert.Equal(t, 75.0, cfg.CoverageMinPct)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "Barcelona", cfg.TargetMunicipality)
	assert.Nil(t, cfg.PollutantWhitelist)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "school-exposure-daily", cfg.KafkaTopic)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("READINGS_CSV", "raw/readings.csv")
	t.Setenv("STATIONS_CSV", "raw/stations.csv")
	t.Setenv("SCHOOLS_CSV", "raw/schools.csv")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("COVERAGE_MIN_PCT", "80")
	t.Setenv("WORKERS", "4")
	t.Setenv("POLLUTANT_WHITELIST", "no2, pm10,pm25")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "raw/readings.csv", cfg.ReadingsCSV)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 80.0, cfg.CoverageMinPct)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"no2", "pm10", "pm25"}, cfg.PollutantWhitelist)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)

	set := cfg.WhitelistSet()
	require.Len(t, set, 3)
	_, ok := set["no2"]
	assert.True(t, ok)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("coverage out of range", func(t *testing.T) {
		t.Setenv("COVERAGE_MIN_PCT", "130")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("coverage not a number", func(t *testing.T) {
		t.Setenv("COVERAGE_MIN_PCT", "most")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative workers", func(t *testing.T) {
		t.Setenv("WORKERS", "-2")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("kafka enabled without brokers", func(t *testing.T) {
		t.Setenv("KAFKA_ENABLED", "true")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestWhitelistSet_Empty(t *testing.T) {
	cfg := &Config{}
	assert.Nil(t, cfg.WhitelistSet())
}
