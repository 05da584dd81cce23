// Package pipeline orchestrates the end-to-end run: reshape the wide hourly
// export into long readings, persist them, match schools to stations, build
// daily aggregates, compute school exposure, and filter through quality
// control. Each stage ends with an acceptance check; a failed check aborts
// the run so no partial artifacts reach downstream consumers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/aggregate"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/config"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/observability"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/qc"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/reshape"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/spatial"
)

// ReadingStore persists deduplicated readings between the reshape and
// aggregation stages.
type ReadingStore interface {
	Reset(ctx context.Context) error
	InsertReadings(ctx context.Context, readings []domain.Reading) (int64, error)
	Readings(ctx context.Context) ([]domain.Reading, error)
	DuplicateSlots(ctx context.Context) (int64, error)
}

// SourceReader loads the three input tables.
type SourceReader interface {
	ReadWide(path string) ([]domain.RawWideRecord, error)
	ReadStations(path string) ([]domain.StationPoint, error)
	ReadSchools(path, municipality string) ([]domain.SchoolPoint, error)
}

// ArtifactWriter emits the output artifacts.
type ArtifactWriter interface {
	WriteReadings(readings []domain.Reading) error
	WriteMapping(mapping []domain.SchoolStationMapping) error
	WriteStationDaily(daily []domain.StationDailyAggregate) error
	WriteExposures(records []domain.SchoolExposureRecord) error
	WriteQCReport(report qc.Report) error
}

// ExposurePublisher optionally forwards QC-approved exposure records to a
// message broker.
type ExposurePublisher interface {
	PublishExposures(ctx context.Context, records []domain.SchoolExposureRecord) error
}

// Result summarizes a completed run.
type Result struct {
	ReadingsKept  int
	SchoolsMapped int
	StationDays   int
	ExposureRows  int
	QCFlagged     int
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       *config.Config
	reader    SourceReader
	store     ReadingStore
	writer    ArtifactWriter
	publisher ExposurePublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. publisher may be nil when no Kafka sink is
// configured.
func New(
	cfg *config.Config,
	reader SourceReader,
	store ReadingStore,
	writer ArtifactWriter,
	publisher ExposurePublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		reader:    reader,
		store:     store,
		writer:    writer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the full pipeline once and writes all artifacts.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.logger.Info("pipeline started",
		"readings", p.cfg.ReadingsCSV,
		"stations", p.cfg.StationsCSV,
		"schools", p.cfg.SchoolsCSV,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var res Result

	readings, err := p.reshapeStage(ctx)
	if err != nil {
		return res, err
	}
	res.ReadingsKept = len(readings)

	// Downstream stages consume the persisted canonical table, not the
	// reshape output.
	readings, err = p.persistStage(ctx, readings)
	if err != nil {
		return res, err
	}

	stations, schools, err := p.loadPointsStage(ctx)
	if err != nil {
		return res, err
	}

	// Station-day aggregation and spatial matching are independent; run
	// them concurrently.
	var (
		daily   []domain.StationDailyAggregate
		mapping []domain.SchoolStationMapping
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = p.stationDailyStage(gctx, readings)
		return err
	})
	g.Go(func() error {
		var err error
		mapping, err = p.matchStage(gctx, schools, stations)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.StationDays = len(daily)
	res.SchoolsMapped = len(mapping)

	exposures, err := p.exposureStage(ctx, daily, mapping)
	if err != nil {
		return res, err
	}

	kept, report, err := p.qcStage(ctx, exposures)
	if err != nil {
		return res, err
	}
	res.ExposureRows = len(kept)
	res.QCFlagged = report.RowsFlagged

	if err := p.writer.WriteExposures(kept); err != nil {
		return res, fmt.Errorf("write exposures: %w", err)
	}
	if err := p.writer.WriteQCReport(report); err != nil {
		return res, fmt.Errorf("write qc report: %w", err)
	}

	if p.publisher != nil && len(kept) > 0 {
		if err := p.publisher.PublishExposures(ctx, kept); err != nil {
			return res, fmt.Errorf("publish exposures: %w", err)
		}
	}

	p.logger.Info("pipeline finished",
		"readings_kept", res.ReadingsKept,
		"schools_mapped", res.SchoolsMapped,
		"station_days", res.StationDays,
		"exposure_rows", res.ExposureRows,
		"qc_flagged", res.QCFlagged,
	)
	return res, nil
}

// reshapeStage reads the wide export and unpivots it into long readings.
func (p *Pipeline) reshapeStage(ctx context.Context) ([]domain.Reading, error) {
	defer p.observeStage("reshape")()

	records, err := p.reader.ReadWide(p.cfg.ReadingsCSV)
	if err != nil {
		return nil, fmt.Errorf("read wide readings: %w", err)
	}
	p.metrics.WideRowsConsumed.Add(float64(len(records)))

	loc, err := p.cfg.Location()
	if err != nil {
		return nil, err
	}
	readings, summary, err := reshape.New(loc, p.cfg.Workers, p.logger).Reshape(ctx, records)
	if err != nil {
		return nil, err
	}
	p.metrics.ReadingsKept.Add(float64(summary.Kept))
	p.metrics.ParseAnomalies.Add(float64(summary.InvalidMarker + summary.MissingValue + summary.NegativeValue + summary.BadTimestamp))
	p.metrics.DuplicatesRemoved.Add(float64(summary.DuplicatesRemoved))

	if len(records) > 0 && len(readings) == 0 {
		return nil, domain.NewInvariantError("reshape", []string{
			fmt.Sprintf("all %d wide rows produced zero valid readings", len(records)),
		})
	}
	if err := p.writer.WriteReadings(readings); err != nil {
		return nil, fmt.Errorf("write readings: %w", err)
	}
	return readings, nil
}

// persistStage resets the store, loads the deduplicated readings, and hands
// back the stored table for the stages that follow. Any insert conflict or
// leftover duplicate slot means the reshape contract was broken.
func (p *Pipeline) persistStage(ctx context.Context, readings []domain.Reading) ([]domain.Reading, error) {
	defer p.observeStage("persist")()

	if err := p.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	inserted, err := p.store.InsertReadings(ctx, readings)
	if err != nil {
		return nil, fmt.Errorf("insert readings: %w", err)
	}

	var violations []string
	if inserted != int64(len(readings)) {
		violations = append(violations, fmt.Sprintf("inserted %d of %d readings", inserted, len(readings)))
	}
	dupes, err := p.store.DuplicateSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("check duplicate slots: %w", err)
	}
	if dupes > 0 {
		violations = append(violations, fmt.Sprintf("%d duplicate station-hour slots in store", dupes))
	}
	if err := domain.NewInvariantError("persist", violations); err != nil {
		return nil, err
	}

	stored, err := p.store.Readings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored readings: %w", err)
	}

	p.logger.Info("readings persisted", "count", inserted)
	return stored, nil
}

// loadPointsStage reads the station and school coordinate tables.
func (p *Pipeline) loadPointsStage(_ context.Context) ([]domain.StationPoint, []domain.SchoolPoint, error) {
	defer p.observeStage("load_points")()

	stations, err := p.reader.ReadStations(p.cfg.StationsCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("read stations: %w", err)
	}
	schools, err := p.reader.ReadSchools(p.cfg.SchoolsCSV, p.cfg.TargetMunicipality)
	if err != nil {
		return nil, nil, fmt.Errorf("read schools: %w", err)
	}

	var violations []string
	if len(stations) == 0 {
		violations = append(violations, "no usable stations after cleaning")
	}
	if len(schools) == 0 {
		violations = append(violations, "no usable schools after cleaning")
	}
	if err := domain.NewInvariantError("load points", violations); err != nil {
		return nil, nil, err
	}
	return stations, schools, nil
}

// stationDailyStage aggregates readings into station-day means.
func (p *Pipeline) stationDailyStage(_ context.Context, readings []domain.Reading) ([]domain.StationDailyAggregate, error) {
	defer p.observeStage("station_daily")()

	daily, removed := aggregate.StationDaily(readings, domain.DefaultPollutantTable(), p.cfg.WhitelistSet())
	p.logger.Info("station daily aggregated", "station_days", len(daily), "whitelist_removed", removed)

	if len(readings) > 0 && len(daily) == 0 {
		return nil, domain.NewInvariantError("station daily", []string{
			"readings present but zero station-day aggregates produced",
		})
	}
	if err := p.writer.WriteStationDaily(daily); err != nil {
		return nil, fmt.Errorf("write station daily: %w", err)
	}
	return daily, nil
}

// matchStage assigns every school its nearest station. The mapping must be
// total: one row per school.
func (p *Pipeline) matchStage(_ context.Context, schools []domain.SchoolPoint, stations []domain.StationPoint) ([]domain.SchoolStationMapping, error) {
	defer p.observeStage("match")()

	mapping, err := spatial.NewMatcher(p.logger).NearestStations(schools, stations)
	if err != nil {
		return nil, err
	}
	if len(mapping) != len(schools) {
		return nil, domain.NewInvariantError("spatial match", []string{
			fmt.Sprintf("mapped %d of %d schools", len(mapping), len(schools)),
		})
	}
	p.metrics.SchoolsMapped.Set(float64(len(mapping)))

	if err := p.writer.WriteMapping(mapping); err != nil {
		return nil, fmt.Errorf("write mapping: %w", err)
	}
	return mapping, nil
}

// exposureStage joins station-day aggregates to the school mapping.
func (p *Pipeline) exposureStage(_ context.Context, daily []domain.StationDailyAggregate, mapping []domain.SchoolStationMapping) ([]domain.SchoolExposureRecord, error) {
	defer p.observeStage("exposure")()

	exposures, summary, err := aggregate.SchoolExposure(daily, mapping, p.cfg.CoverageMinPct, p.logger)
	if err != nil {
		return nil, err
	}
	p.logger.Info("school exposure computed",
		"groups", summary.GroupsBefore,
		"dropped_coverage", summary.DroppedCoverage,
		"dropped_value", summary.DroppedValue,
		"kept", summary.Kept,
	)
	return exposures, nil
}

// qcStage filters exposure records against pollutant bounds.
func (p *Pipeline) qcStage(_ context.Context, exposures []domain.SchoolExposureRecord) ([]domain.SchoolExposureRecord, qc.Report, error) {
	defer p.observeStage("qc")()

	filter := qc.NewFilter(domain.DefaultPollutantBounds(), p.cfg.CoverageMinPct, p.logger)
	kept, report, err := filter.Run(exposures)
	if err != nil {
		return nil, qc.Report{}, err
	}
	for reason, n := range report.Flagged {
		p.metrics.QCFlagged.WithLabelValues(reason).Add(float64(n))
	}
	p.metrics.ExposureRowsKept.Add(float64(len(kept)))
	return kept, report, nil
}

// observeStage records the wall time of a stage.
func (p *Pipeline) observeStage(stage string) func() {
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
