package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"claimcast/chat"
	"claimcast/claims"
	"claimcast/forecast"
	"claimcast/llm"
	"claimcast/ml"
	"claimcast/monitoring"
)

const (
	defaultRangeDays    = 30
	defaultRunsLimit    = 20
	maxRunsLimit        = 200
	maxRequestBodyBytes = 1 << 20
)

// Deps are the collaborators the handlers serve from.
type Deps struct {
	Service   *forecast.Service
	Responder *chat.Responder
	Quota     *llm.Quota
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger

	AllowedOrigins []string
}

type Handler struct {
	service   *forecast.Service
	responder *chat.Responder
	quota     *llm.Quota
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Quota == nil {
		d.Quota = llm.NewQuota(llm.DefaultDailyLimit)
	}
	if d.Responder == nil {
		d.Responder = chat.NewResponder(d.Service, nil, d.Quota, d.Metrics, d.Logger)
	}
	origins := d.AllowedOrigins
	return &Handler{
		service:   d.Service,
		responder: d.Responder,
		quota:     d.Quota,
		metrics:   d.Metrics,
		logger:    d.Logger.Named("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origins, origin)
			},
		},
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/counties", h.handleCounties)
	mux.HandleFunc("GET /api/claim-types", h.handleClaimTypes)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predict-range/{county}/{claim_type}", h.handlePredictRange)
	mux.HandleFunc("GET /api/summary/{county}", h.handleSummary)
	mux.HandleFunc("GET /api/insights/{county}/{claim_type}", h.handleInsights)
	mux.HandleFunc("GET /api/anomalies/{county}/{claim_type}", h.handleAnomalies)
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("GET /api/ws/chat", h.handleChatSocket)
	mux.HandleFunc("GET /api/usage", h.handleUsage)
	mux.HandleFunc("GET /api/training-runs", h.handleTrainingRuns)
	mux.HandleFunc("POST /api/retrain", h.handleRetrain)
	mux.Handle("GET /metrics", h.metrics.Handler())
}

type healthResponse struct {
	Status     string                 `json:"status"`
	Segments   int                    `json:"segments"`
	Generation uint64                 `json:"generation"`
	Records    int                    `json:"records"`
	TrainedAt  time.Time              `json:"trained_at"`
	SwappedAt  time.Time              `json:"swapped_at"`
	System     monitoring.SystemStats `json:"system"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Segments:   snap.Store.Len(),
		Generation: snap.Generation,
		Records:    snap.History.Len(),
		TrainedAt:  snap.Store.TrainedAt(),
		SwappedAt:  snap.SwappedAt,
		System:     h.metrics.SystemStats(),
	})
}

func (h *Handler) handleCounties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"counties": h.service.Counties()})
}

func (h *Handler) handleClaimTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"claim_types": h.service.ClaimTypes()})
}

type predictRequest struct {
	County     string `json:"county"`
	ClaimType  string `json:"claim_type"`
	TargetDate string `json:"target_date"`
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Predict(req.County, req.ClaimType, req.TargetDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rangeResponse struct {
	County      string          `json:"county"`
	ClaimType   string          `json:"claim_type"`
	StartDate   claims.Date     `json:"start_date"`
	Days        int             `json:"days"`
	Predictions []ml.Prediction `json:"predictions"`
}

func (h *Handler) handlePredictRange(w http.ResponseWriter, r *http.Request) {
	county, claimType := r.PathValue("county"), r.PathValue("claim_type")

	days := defaultRangeDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 || d > ml.MaxRangeDays {
			h.writeError(w, r, &ml.InvalidInputError{Field: "days", Value: raw, Err: fmt.Errorf("must be between 0 and %d", ml.MaxRangeDays)})
			return
		}
		days = d
	}

	start := h.service.Today()
	if raw := r.URL.Query().Get("start"); raw != "" {
		d, err := claims.ParseDate(raw)
		if err != nil {
			h.writeError(w, r, &ml.InvalidInputError{Field: "start", Value: raw, Err: err})
			return
		}
		start = d
	}

	if _, ok := h.service.Snapshot().Store.Get(county, claimType); !ok {
		h.writeError(w, r, fmt.Errorf("%s/%s: %w", county, claimType, ml.ErrSegmentNotFound))
		return
	}
	preds, err := h.service.PredictDays(county, claimType, start, days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{
		County:      county,
		ClaimType:   claimType,
		StartDate:   start,
		Days:        days,
		Predictions: preds,
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	county := r.PathValue("county")
	summary, err := h.service.Summary(county)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"county": county, "summary": summary})
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	county, claimType := r.PathValue("county"), r.PathValue("claim_type")
	insights, err := h.service.Insights(county, claimType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"county":     county,
		"claim_type": claimType,
		"insights":   insights,
	})
}

func (h *Handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	county, claimType := r.PathValue("county"), r.PathValue("claim_type")
	detector := claims.NewAnomalyDetector()
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 || n > ml.MaxRangeDays {
			h.writeError(w, r, &ml.InvalidInputError{Field: "window", Value: raw, Err: fmt.Errorf("must be between 2 and %d", ml.MaxRangeDays)})
			return
		}
		detector.Window = n
	}
	if raw := r.URL.Query().Get("z"); raw != "" {
		z, err := strconv.ParseFloat(raw, 64)
		if err != nil || z <= 0 {
			h.writeError(w, r, &ml.InvalidInputError{Field: "z", Value: raw, Err: fmt.Errorf("must be positive")})
			return
		}
		detector.ZThreshold = z
	}

	anomalies, err := h.service.Anomalies(county, claimType, detector)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"county":     county,
		"claim_type": claimType,
		"window":     detector.Window,
		"anomalies":  anomalies,
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.responder.Reply(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.quota.Usage())
}

func (h *Handler) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, r, &ml.InvalidInputError{Field: "limit", Value: raw})
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.service.TrainingRuns(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handleRetrain(w http.ResponseWriter, r *http.Request) {
	// A retrain outlives a client that disconnects mid-run.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.service.Retrain(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, &ml.InvalidInputError{Field: "body", Value: "", Err: err})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ml.ErrInvalidInput), errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrSegmentNotFound),
		errors.Is(err, claims.ErrInsufficientHistory),
		errors.Is(err, forecast.ErrCountyNotFound):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrRetrainInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
