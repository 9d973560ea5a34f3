package ml

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"claimcast/claims"
)

// MinTrainingRows is the smallest segment history a model is fitted on.
const MinTrainingRows = 100

// Trainer fits per-segment count and cost models.
type Trainer struct {
	MinRows int
	// OnSegment, when set, is called after each segment is attempted.
	OnSegment func(key claims.SegmentKey, err error)

	logger *zap.Logger
	now    func() time.Time
}

func NewTrainer(logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		MinRows: MinTrainingRows,
		logger:  logger.Named("trainer"),
		now:     time.Now,
	}
}

func (t *Trainer) minRows() int {
	if t.MinRows <= 0 {
		return MinTrainingRows
	}
	return t.MinRows
}

// TrainSegment fits both models for one segment.
func (t *Trainer) TrainSegment(h *claims.History, county, claimType string) (*Segment, error) {
	key := claims.SegmentKey{County: county, ClaimType: claimType}
	rows := h.Segment(county, claimType)
	if len(rows) < t.minRows() {
		return nil, fmt.Errorf("%s has %d rows, need %d: %w", key, len(rows), t.minRows(), ErrInsufficientHistory)
	}

	ds := BuildDataset(rows)
	countModel, err := FitLinear("claim_count", ds.Columns, ds.X, ds.Counts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	costModel, err := FitLinear("total_cost", ds.Columns, ds.X, ds.Costs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	now := time.Now
	if t.now != nil {
		now = t.now
	}
	return &Segment{
		Key:            key,
		CountModel:     countModel,
		CostModel:      costModel,
		FeatureColumns: ds.Columns,
		Rows:           len(rows),
		FirstDate:      rows[0].Date,
		LastDate:       rows[len(rows)-1].Date,
		TrainedAt:      now().UTC(),
	}, nil
}

// SegmentFailure records a segment whose fit failed.
type SegmentFailure struct {
	Key   claims.SegmentKey `json:"key"`
	Error string            `json:"error"`
}

// TrainReport summarizes a TrainAll run.
type TrainReport struct {
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Records   int                 `json:"records"`
	Trained   []claims.SegmentKey `json:"trained"`
	Skipped   []claims.SegmentKey `json:"skipped"`
	Failed    []SegmentFailure    `json:"failed"`
}

// TrainAll trains every (county, claim type) pair present in the history.
// Segments below the row floor are skipped and failed fits are reported; neither
// aborts the run.
func (t *Trainer) TrainAll(h *claims.History) (*Store, *TrainReport) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	report := &TrainReport{StartedAt: now().UTC(), Records: h.Len()}

	var segments []*Segment
	for _, county := range h.Counties() {
		for _, claimType := range h.ClaimTypes() {
			rows := h.Segment(county, claimType)
			if len(rows) == 0 {
				continue
			}
			key := claims.SegmentKey{County: county, ClaimType: claimType}
			seg, err := t.TrainSegment(h, county, claimType)
			switch {
			case errors.Is(err, ErrInsufficientHistory):
				report.Skipped = append(report.Skipped, key)
				t.logger.Debug("segment skipped", zap.Stringer("segment", key), zap.Int("rows", len(rows)))
			case err != nil:
				report.Failed = append(report.Failed, SegmentFailure{Key: key, Error: err.Error()})
				t.logger.Warn("segment fit failed", zap.Stringer("segment", key), zap.Error(err))
			default:
				segments = append(segments, seg)
				report.Trained = append(report.Trained, key)
				t.logger.Debug("segment trained",
					zap.Stringer("segment", key),
					zap.Int("rows", seg.Rows),
					zap.Float64("count_r2", seg.CountModel.R2),
					zap.Float64("cost_r2", seg.CostModel.R2),
				)
			}
			if t.OnSegment != nil {
				t.OnSegment(key, err)
			}
		}
	}

	report.Duration = now().Sub(report.StartedAt)
	t.logger.Info("training complete",
		zap.Int("records", report.Records),
		zap.Int("trained", len(report.Trained)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)
	return NewStore(report.StartedAt, segments...), report
}

// SegmentCount is the number of segments TrainAll will attempt.
func SegmentCount(h *claims.History) int {
	n := 0
	for _, county := range h.Counties() {
		for _, claimType := range h.ClaimTypes() {
			if len(h.Segment(county, claimType)) > 0 {
				n++
			}
		}
	}
	return n
}
