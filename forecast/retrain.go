package forecast

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"claimcast/db"
	"claimcast/ml"
)

// RetrainResult describes a completed retrain.
type RetrainResult struct {
	RunID      string          `json:"run_id"`
	Generation uint64          `json:"generation"`
	Segments   int             `json:"segments"`
	Report     *ml.TrainReport `json:"report"`
}

// Retrain reloads the dataset, trains a complete new store and swaps it in.
// The previous store keeps serving until the swap.
func (s *Service) Retrain(ctx context.Context) (*RetrainResult, error) {
	if s.opts.Loader == nil {
		return nil, ErrNoLoader
	}
	if !s.retrainMu.TryLock() {
		return nil, ErrRetrainInProgress
	}
	defer s.retrainMu.Unlock()

	runID := uuid.NewString()
	startedAt := s.opts.Now()
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("retrain started", zap.String("source", s.opts.SourceName))

	history, err := s.opts.Loader(ctx)
	if err != nil {
		s.recordRun(db.TrainingRun{RunID: runID, Status: "error", Error: err.Error(), StartedAt: startedAt})
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainer := ml.NewTrainer(s.opts.Logger)
	trainer.MinRows = s.opts.MinTrainingRows
	store, report := trainer.TrainAll(history)

	blob, err := ml.Save(store)
	if err != nil {
		s.recordRun(db.TrainingRun{RunID: runID, Status: "error", Records: report.Records, Error: err.Error(), StartedAt: startedAt})
		return nil, fmt.Errorf("encode model store: %w", err)
	}
	if s.opts.ModelPath != "" {
		// Recorded before the write so the watcher sees our own file as unchanged.
		sum := sha256.Sum256(blob)
		s.written.Store(&sum)
		if err := ml.WriteFile(s.opts.ModelPath, blob); err != nil {
			s.recordRun(db.TrainingRun{RunID: runID, Status: "error", Records: report.Records, Error: err.Error(), StartedAt: startedAt})
			return nil, fmt.Errorf("persist model store: %w", err)
		}
	}
	s.saveSnapshot(runID, blob, store.Len(), logger)

	generation := s.Swap(history, store)
	duration := s.opts.Now().Sub(startedAt)
	s.opts.Metrics.ObserveTraining("ok", duration)
	s.recordRun(db.TrainingRun{
		RunID:     runID,
		Status:    "ok",
		Records:   report.Records,
		Trained:   len(report.Trained),
		Skipped:   len(report.Skipped),
		Failed:    len(report.Failed),
		Duration:  duration,
		StartedAt: startedAt,
	})
	logger.Info("retrain finished", zap.Uint64("generation", generation), zap.Duration("duration", duration))

	return &RetrainResult{
		RunID:      runID,
		Generation: generation,
		Segments:   store.Len(),
		Report:     report,
	}, nil
}

func (s *Service) recordRun(run db.TrainingRun) {
	if run.Status != "ok" {
		s.opts.Metrics.ObserveTraining(run.Status, 0)
	}
	if s.opts.DB == nil {
		return
	}
	run.Source = s.opts.SourceName
	if err := s.opts.DB.RecordTrainingRun(run); err != nil {
		s.logger.Warn("record training run", zap.Error(err))
	}
}

func (s *Service) saveSnapshot(runID string, blob []byte, segments int, logger *zap.Logger) {
	if s.opts.DB == nil {
		return
	}
	err := s.opts.DB.SaveSnapshot(db.Snapshot{
		RunID:     runID,
		Format:    ml.FormatVersion,
		Segments:  segments,
		Blob:      blob,
		CreatedAt: s.opts.Now(),
	})
	if err != nil {
		logger.Warn("save snapshot", zap.Error(err))
	}
}

// ReloadModels loads a persisted store from path and swaps it in against the
// current history.
func (s *Service) ReloadModels(path string) (uint64, error) {
	store, err := ml.LoadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reload models from %s: %w", path, err)
	}
	return s.Swap(s.Snapshot().History, store), nil
}

// reloadChanged reloads the model file at path unless it holds exactly the
// store this service last wrote there.
func (s *Service) reloadChanged(path string) (gen uint64, reloaded bool, err error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("reload models from %s: %w", path, err)
	}
	if own := s.written.Load(); own != nil && *own == sha256.Sum256(blob) {
		return s.Snapshot().Generation, false, nil
	}
	store, err := ml.Load(blob)
	if err != nil {
		return 0, false, fmt.Errorf("reload models from %s: %w", path, err)
	}
	return s.Swap(s.Snapshot().History, store), true, nil
}

// TrainingRuns returns the most recent recorded runs.
func (s *Service) TrainingRuns(limit int) ([]db.TrainingRun, error) {
	if s.opts.DB == nil {
		return []db.TrainingRun{}, nil
	}
	return s.opts.DB.LatestTrainingRuns(limit)
}
