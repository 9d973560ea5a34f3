// Package forecast serves predictions and insights against an atomically
// swappable model store.
package forecast

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"claimcast/claims"
	"claimcast/db"
	"claimcast/ml"
	"claimcast/monitoring"
)

var (
	// ErrCountyNotFound is returned for a county absent from the history.
	ErrCountyNotFound = errors.New("county not found")
	// ErrRetrainInProgress is returned when a retrain is already running.
	ErrRetrainInProgress = errors.New("retrain already in progress")
	// ErrNoLoader is returned by Retrain when no dataset loader is configured.
	ErrNoLoader = errors.New("no dataset loader configured")
)

// Loader reads the full claims history.
type Loader func(ctx context.Context) (*claims.History, error)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	DB      *db.DB

	Loader     Loader
	SourceName string
	ModelPath  string

	MinTrainingRows int
	MinInsightRows  int
	CacheSize       int
	Debounce        time.Duration

	Now func() time.Time
}

// Snapshot is a consistent view of the history and the store trained on it.
type Snapshot struct {
	History    *claims.History
	Store      *ml.Store
	Generation uint64
	SwappedAt  time.Time
}

type cacheKey struct {
	generation uint64
	county     string
	claimType  string
	date       claims.Date
}

type Service struct {
	opts   Options
	logger *zap.Logger

	snap      atomic.Pointer[Snapshot]
	cache     *lru.Cache[cacheKey, ml.Prediction]
	retrainMu sync.Mutex

	// written is the digest of the last model file this service wrote.
	written atomic.Pointer[[sha256.Size]byte]
}

func New(history *claims.History, store *ml.Store, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.MinTrainingRows <= 0 {
		opts.MinTrainingRows = ml.MinTrainingRows
	}
	if opts.MinInsightRows <= 0 {
		opts.MinInsightRows = claims.MinInsightRows
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if history == nil {
		history = claims.NewHistory(nil)
	}
	if store == nil {
		store = ml.NewStore(time.Time{})
	}

	cache, err := lru.New[cacheKey, ml.Prediction](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}

	s := &Service{
		opts:   opts,
		logger: opts.Logger.Named("forecast"),
		cache:  cache,
	}
	s.swap(history, store)
	return s, nil
}

// Snapshot returns the current view. It is never nil.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Service) swap(history *claims.History, store *ml.Store) *Snapshot {
	next := &Snapshot{History: history, Store: store, SwappedAt: s.opts.Now().UTC()}
	for {
		prev := s.snap.Load()
		if prev != nil {
			next.Generation = prev.Generation + 1
		}
		if s.snap.CompareAndSwap(prev, next) {
			break
		}
	}
	s.opts.Metrics.SetStore(store.Len(), next.Generation)
	s.logger.Info("model store active",
		zap.Uint64("generation", next.Generation),
		zap.Int("segments", store.Len()),
		zap.Int("records", history.Len()),
	)
	return next
}

// Swap installs a new history and store pair.
func (s *Service) Swap(history *claims.History, store *ml.Store) uint64 {
	return s.swap(history, store).Generation
}

func (s *Service) Counties() []string {
	return s.Snapshot().History.Counties()
}

// KnownCounties lists the dataset counties in load order.
func (s *Service) KnownCounties() []string {
	return s.Snapshot().History.CountiesInLoadOrder()
}

func (s *Service) ClaimTypes() []string {
	return s.Snapshot().History.ClaimTypes()
}

// Predict forecasts one segment on the date given as YYYY-MM-DD text.
func (s *Service) Predict(county, claimType, dateText string) (*ml.Prediction, error) {
	d, err := claims.ParseDate(dateText)
	if err != nil {
		s.opts.Metrics.ObservePrediction("invalid")
		return nil, &ml.InvalidInputError{Field: "target_date", Value: dateText, Err: err}
	}
	snap := s.Snapshot()
	p, err := s.predict(snap, county, claimType, d)
	s.observe(err)
	if err != nil {
		return nil, err
	}
	s.logPrediction(p, snap.Generation)
	return p, nil
}

func (s *Service) predict(snap *Snapshot, county, claimType string, d claims.Date) (*ml.Prediction, error) {
	key := cacheKey{generation: snap.Generation, county: county, claimType: claimType, date: d}
	if p, ok := s.cache.Get(key); ok {
		s.opts.Metrics.ObserveCache(true)
		return &p, nil
	}
	s.opts.Metrics.ObserveCache(false)

	p, err := ml.PredictDate(snap.Store, county, claimType, d)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, *p)
	return p, nil
}

func (s *Service) observe(err error) {
	switch {
	case err == nil:
		s.opts.Metrics.ObservePrediction("ok")
	case errors.Is(err, ml.ErrSegmentNotFound):
		s.opts.Metrics.ObservePrediction("not_found")
	case errors.Is(err, ml.ErrInvalidInput):
		s.opts.Metrics.ObservePrediction("invalid")
	default:
		s.opts.Metrics.ObservePrediction("error")
	}
}

func (s *Service) logPrediction(p *ml.Prediction, generation uint64) {
	if s.opts.DB == nil {
		return
	}
	err := s.opts.DB.LogPrediction(db.PredictionLog{
		County:          p.County,
		ClaimType:       p.ClaimType,
		TargetDate:      p.Date.String(),
		PredictedCount:  p.PredictedCount,
		PredictedCost:   p.PredictedCost,
		AvgCostPerClaim: p.AvgCostPerClaim,
		Generation:      generation,
		CreatedAt:       s.opts.Now(),
	})
	if err != nil {
		s.logger.Warn("log prediction", zap.Error(err))
	}
}

// PredictRange forecasts days consecutive dates from startText. Dates that
// cannot be predicted are left out.
func (s *Service) PredictRange(county, claimType, startText string, days int) ([]ml.Prediction, error) {
	start, err := claims.ParseDate(startText)
	if err != nil {
		return nil, &ml.InvalidInputError{Field: "start_date", Value: startText, Err: err}
	}
	return s.PredictDays(county, claimType, start, days)
}

func (s *Service) PredictDays(county, claimType string, start claims.Date, days int) ([]ml.Prediction, error) {
	if days < 0 {
		return nil, &ml.InvalidInputError{Field: "days", Value: fmt.Sprint(days)}
	}
	snap := s.Snapshot()
	out := make([]ml.Prediction, 0, min(days, ml.MaxRangeDays))
	for i := 0; i < days; i++ {
		p, err := s.predict(snap, county, claimType, start.AddDays(i))
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// Insights returns the seasonal aggregates for one segment.
func (s *Service) Insights(county, claimType string) (*claims.Insights, error) {
	agg := claims.InsightAggregator{MinRows: s.opts.MinInsightRows}
	return agg.Seasonal(s.Snapshot().History, county, claimType)
}

// Anomalies flags unusual days in one segment's history.
func (s *Service) Anomalies(county, claimType string, detector claims.AnomalyDetector) ([]claims.Anomaly, error) {
	return detector.Detect(s.Snapshot().History, county, claimType)
}

// Summary returns per-claim-type statistics for a county.
func (s *Service) Summary(county string) ([]claims.ClaimTypeSummary, error) {
	h := s.Snapshot().History
	if !h.HasCounty(county) {
		return nil, fmt.Errorf("%q: %w", county, ErrCountyNotFound)
	}
	return claims.CountySummary(h, county), nil
}

// Today is the service clock's current date.
func (s *Service) Today() claims.Date {
	return claims.DateOf(s.opts.Now())
}
