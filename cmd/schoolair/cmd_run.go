package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/adapter/csvio"
	kafkaadapter "github.com/soccerwave/barcelona-air-quality-schools/internal/adapter/kafka"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/config"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/observability"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/pipeline"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline once",
	Long: `Read the configured input CSVs, run every stage, and write the output
artifacts. Flags override the corresponding environment variables.`,
	RunE: runPipeline,
}

var (
	flagReadings string
	flagStations string
	flagSchools  string
	flagOut      string
)

func init() {
	runCmd.Flags().StringVar(&flagReadings, "readings", "", "wide hourly readings CSV (overrides READINGS_CSV)")
	runCmd.Flags().StringVar(&flagStations, "stations", "", "station coordinates CSV (overrides STATIONS_CSV)")
	runCmd.Flags().StringVar(&flagSchools, "schools", "", "school registry CSV (overrides SCHOOLS_CSV)")
	runCmd.Flags().StringVar(&flagOut, "out", "", "output directory (overrides OUTPUT_DIR)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagReadings != "" {
		cfg.ReadingsCSV = flagReadings
	}
	if flagStations != "" {
		cfg.StationsCSV = flagStations
	}
	if flagSchools != "" {
		cfg.SchoolsCSV = flagSchools
	}
	if flagOut != "" {
		cfg.OutputDir = flagOut
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open reading store: %w", err)
	}
	defer st.Close()

	writer, err := csvio.NewWriter(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}

	// Kafka publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.ExposurePublisher
	if cfg.KafkaEnabled {
		kw := kafkaadapter.NewWriter(cfg, logger)
		defer kw.Close()
		publisher = kw
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(cfg, csvio.NewReader(logger), st, writer, publisher, logger, metrics)

	res, err := p.Run(cmd.Context())
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		return err
	}

	if err := metrics.Push(cfg.PushgatewayURL); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}

	logger.Info("run complete",
		"readings_kept", res.ReadingsKept,
		"schools_mapped", res.SchoolsMapped,
		"station_days", res.StationDays,
		"exposure_rows", res.ExposureRows,
		"qc_flagged", res.QCFlagged,
		"output_dir", cfg.OutputDir,
	)
	return nil
}
