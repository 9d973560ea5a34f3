// Package pipeline reads, cleans and indexes the claims dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"claimcast/claims"
)

// ErrNothingUsable is returned when every row of a non-empty dataset was rejected.
var ErrNothingUsable = errors.New("every dataset row was rejected")

// RecordSource yields the raw dataset rows.
type RecordSource interface {
	Records(ctx context.Context) ([]claims.Record, error)
	String() string
}

// IngestionStats counts what the last loads read and kept.
type IngestionStats struct {
	Runs          int64         `json:"runs"`
	LastRecords   int           `json:"last_records"`
	LastPassed    int           `json:"last_passed"`
	LastRejected  int           `json:"last_rejected"`
	LastIngestion time.Time     `json:"last_ingestion"`
	LastDuration  time.Duration `json:"last_duration"`
}

// DataIngester reads claims from a source and cleans them.
type DataIngester struct {
	source  RecordSource
	cleaner *DataCleaner
	logger  *zap.Logger

	statsLock sync.RWMutex
	stats     IngestionStats
}

// NewDataIngester wires a source to a cleaner. A nil cleaner gets the
// default rules.
func NewDataIngester(source RecordSource, cleaner *DataCleaner, logger *zap.Logger) *DataIngester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleaner == nil {
		cleaner = NewDataCleaner(logger)
	}
	return &DataIngester{
		source:  source,
		cleaner: cleaner,
		logger:  logger.Named("ingest"),
	}
}

// Load reads the source, cleans the rows and indexes the survivors.
func (di *DataIngester) Load(ctx context.Context) (*claims.History, error) {
	start := time.Now()
	records, err := di.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", di.source, err)
	}

	cleaned, issues := di.cleaner.Clean(records)
	for i, issue := range issues {
		if i == 20 {
			di.logger.Warn("further quality issues omitted", zap.Int("total", len(issues)))
			break
		}
		di.logger.Warn("row rejected",
			zap.String("rule", issue.Type),
			zap.String("county", issue.County),
			zap.String("claim_type", issue.ClaimType),
			zap.Stringer("date", issue.Date),
			zap.String("reason", issue.Message),
		)
	}
	if len(records) > 0 && len(cleaned) == 0 {
		return nil, fmt.Errorf("%s: %w", di.source, ErrNothingUsable)
	}

	di.statsLock.Lock()
	di.stats.Runs++
	di.stats.LastRecords = len(records)
	di.stats.LastPassed = len(cleaned)
	di.stats.LastRejected = len(issues)
	di.stats.LastIngestion = start
	di.stats.LastDuration = time.Since(start)
	di.statsLock.Unlock()

	di.logger.Info("dataset ingested",
		zap.String("source", di.source.String()),
		zap.Int("records", len(records)),
		zap.Int("passed", len(cleaned)),
		zap.Int("rejected", len(issues)),
	)
	return claims.NewHistory(cleaned), nil
}

// GetStats returns a copy of the ingestion counters.
func (di *DataIngester) GetStats() IngestionStats {
	di.statsLock.RLock()
	defer di.statsLock.RUnlock()
	return di.stats
}

// Cleaner exposes the cleaner for its statistics and issue history.
func (di *DataIngester) Cleaner() *DataCleaner {
	return di.cleaner
}
