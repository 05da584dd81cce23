// Package config loads pipeline settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
// Input paths may be overridden by CLI flags after loading.
type Config struct {
	ReadingsCSV string
	StationsCSV string
	SchoolsCSV  string
	OutputDir   string
	SQLitePath  string

	Timezone           string
	CoverageMinPct     float64
	Workers            int
	TargetMunicipality string
	PollutantWhitelist []string

	LogLevel  string
	LogFormat string

	PushgatewayURL string

	// Optional Kafka sink for post-QC exposure records.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	coverageMin, err := parseFloatEnv("COVERAGE_MIN_PCT", 75.0)
	if err != nil {
		return nil, err
	}
	if coverageMin < 0 || coverageMin > 100 {
		return nil, fmt.Errorf("COVERAGE_MIN_PCT must be within [0, 100], got %g", coverageMin)
	}

	workers, err := parseIntEnv("WORKERS", 0)
	if err != nil {
		return nil, err
	}
	if workers < 0 {
		return nil, errors.New("WORKERS must not be negative")
	}

	kafkaBrokers := parseList(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		ReadingsCSV: os.Getenv("READINGS_CSV"),
		StationsCSV: os.Getenv("STATIONS_CSV"),
		SchoolsCSV:  os.Getenv("SCHOOLS_CSV"),
		OutputDir:   envOrDefault("OUTPUT_DIR", "data/processed"),
		SQLitePath:  envOrDefault("SQLITE_PATH", "data/processed/readings.db"),

		Timezone:           envOrDefault("TIMEZONE", domain.DefaultTimezone),
		CoverageMinPct:     coverageMin,
		Workers:            workers,
		TargetMunicipality: envOrDefault("TARGET_MUNICIPALITY", "Barcelona"),
		PollutantWhitelist: parseList(os.Getenv("POLLUTANT_WHITELIST")),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "school-exposure-daily"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location resolves the configured civil timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WhitelistSet returns the pollutant whitelist as a lowercase set, nil when
// no whitelist is configured.
func (c *Config) WhitelistSet() map[string]struct{} {
	if len(c.PollutantWhitelist) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.PollutantWhitelist))
	for _, name := range c.PollutantWhitelist {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// parseList splits a comma-separated env value, trimming blanks.
func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
