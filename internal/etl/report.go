package etl

import (
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// RowError records one skipped row and why it was skipped.
type RowError struct {
	RowID  string
	Reason string
}

// BatchReport collects per-row outcomes of one fact batch. A skipped
// row never aborts the rest of the batch; it lands here instead.
type BatchReport struct {
	Origin  model.Origin
	Loaded  int
	Skipped []RowError
}

func (b *BatchReport) skip(rowID string, err error) {
	b.Skipped = append(b.Skipped, RowError{RowID: rowID, Reason: err.Error()})
	zap.L().Warn("fact row skipped",
		zap.String("origin", string(b.Origin)),
		zap.String("row_id", rowID),
		zap.Error(err),
	)
}

// RunSummary is the outcome of one complete load run.
type RunSummary struct {
	Products         int
	ProductsRejected int
	Clients          int
	DataSources      int
	Classifications  int
	SocialNetworks   int
	TimeRows         int
	TimeDefaulted    bool
	Facts            []*BatchReport
}

// FactsLoaded totals loaded fact rows across all origins.
func (s *RunSummary) FactsLoaded() int {
	var n int
	for _, b := range s.Facts {
		n += b.Loaded
	}
	return n
}

// FactsSkipped totals skipped fact rows across all origins.
func (s *RunSummary) FactsSkipped() int {
	var n int
	for _, b := range s.Facts {
		n += len(b.Skipped)
	}
	return n
}
