package llm

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDailyLimit is the number of LLM requests allowed per calendar day.
const DefaultDailyLimit = 100

// UsageStore persists per-day request counts.
type UsageStore interface {
	IncrementUsage(day string) (int, error)
	Usage(day string) (int, error)
}

// Usage is the quota state reported to chat clients.
type Usage struct {
	Used         int  `json:"groq_requests_used"`
	Limit        int  `json:"groq_requests_limit"`
	LimitReached bool `json:"limit_reached"`
}

// Quota is a daily request counter. The count resets when the calendar day
// of the clock changes.
type Quota struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int

	now    func() time.Time
	store  UsageStore
	logger *zap.Logger
}

type QuotaOption func(*Quota)

func WithClock(now func() time.Time) QuotaOption {
	return func(q *Quota) { q.now = now }
}

func WithUsageStore(s UsageStore) QuotaOption {
	return func(q *Quota) { q.store = s }
}

func WithLogger(l *zap.Logger) QuotaOption {
	return func(q *Quota) { q.logger = l }
}

func NewQuota(limit int, opts ...QuotaOption) *Quota {
	if limit < 0 {
		limit = 0
	}
	q := &Quota{limit: limit, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// roll resets the counter when the day changed. Callers hold mu.
func (q *Quota) roll() {
	day := q.now().Format("2006-01-02")
	if day == q.day {
		return
	}
	q.day = day
	q.used = 0
	if q.store != nil {
		n, err := q.store.Usage(day)
		if err != nil {
			q.logger.Warn("load llm usage", zap.String("day", day), zap.Error(err))
			return
		}
		q.used = n
	}
}

// Allow consumes one request if the daily limit has not been reached.
func (q *Quota) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.roll()
	if q.used >= q.limit {
		return false
	}
	q.used++
	if q.store != nil {
		n, err := q.store.IncrementUsage(q.day)
		if err != nil {
			q.logger.Warn("persist llm usage", zap.String("day", q.day), zap.Error(err))
		} else {
			q.used = n
		}
	}
	return true
}

func (q *Quota) Usage() Usage {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.roll()
	return Usage{Used: q.used, Limit: q.limit, LimitReached: q.used >= q.limit}
}
