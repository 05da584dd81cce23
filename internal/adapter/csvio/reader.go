package csvio

import (
	"log/slog"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// Reader wraps the table readers and logs their cleaning summaries.
// It implements pipeline.SourceReader.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

func (r *Reader) ReadWide(path string) ([]domain.RawWideRecord, error) {
	records, summary, err := ReadWideRecords(path)
	if err != nil {
		return nil, err
	}
	r.logger.Info("wide readings loaded",
		"path", path,
		"rows", summary.RowsRead,
		"malformed", summary.MalformedRows,
	)
	return records, nil
}

func (r *Reader) ReadStations(path string) ([]domain.StationPoint, error) {
	stations, summary, err := ReadStations(path)
	if err != nil {
		return nil, err
	}
	r.logPoints("stations loaded", path, summary)
	return stations, nil
}

func (r *Reader) ReadSchools(path, municipality string) ([]domain.SchoolPoint, error) {
	schools, summary, err := ReadSchools(path, municipality)
	if err != nil {
		return nil, err
	}
	r.logPoints("schools loaded", path, summary)
	return schools, nil
}

func (r *Reader) logPoints(msg, path string, summary PointSummary) {
	r.logger.Info(msg,
		"path", path,
		"rows", summary.RowsRead,
		"bad_coordinates", summary.BadCoordinates,
		"out_of_range", summary.OutOfRange,
		"duplicates", summary.Duplicates,
		"other_municipality", summary.OtherMunicipality,
		"kept", summary.Kept,
	)
}
