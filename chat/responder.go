package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"claimcast/llm"
	"claimcast/monitoring"
)

const systemPrompt = `You are a Kansas health insurance claims prediction assistant.
Format your responses with clear structure using markdown-like formatting:
- Use **bold** for key numbers and important points
- Use bullet points for lists
- Use headers with ## for main sections
- Keep paragraphs short and readable
- Always include specific numbers from the data provided
- If a chart is provided, mention it in your response

Available Kansas counties include Johnson, Sedgwick, Shawnee, Wyandotte, Douglas, and others.
Claim types include: emergency, inpatient, outpatient, pharmacy, mental_health, preventive.`

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is required")

// Request is an incoming chat message.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response is the full answer to one message.
type Response struct {
	ConversationID string    `json:"conversation_id"`
	Response       string    `json:"response"`
	Source         string    `json:"source"`
	Context        Context   `json:"context"`
	Chart          *Chart    `json:"chart,omitempty"`
	Usage          llm.Usage `json:"usage"`
}

// Reply sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Responder answers chat messages, using the LLM while the daily quota lasts.
type Responder struct {
	forecaster Forecaster
	completer  llm.Completer
	quota      *llm.Quota
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewResponder wires the chat layer. completer may be nil, in which case every
// reply is the formatted fallback.
func NewResponder(f Forecaster, completer llm.Completer, quota *llm.Quota, metrics *monitoring.Metrics, logger *zap.Logger) *Responder {
	if quota == nil {
		quota = llm.NewQuota(llm.DefaultDailyLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c, ok := completer.(*llm.Client); ok && !c.Configured() {
		completer = nil
	}
	return &Responder{
		forecaster: f,
		completer:  completer,
		quota:      quota,
		metrics:    metrics,
		logger:     logger.Named("chat"),
	}
}

func (r *Responder) Reply(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	q := ParseQuery(req.Message, r.forecaster.KnownCounties())
	c := BuildContext(r.forecaster, q)
	chart := BuildChart(c)
	r.logger.Debug("chat query",
		zap.String("conversation_id", conversationID),
		zap.String("county", q.County),
		zap.String("claim_type", q.ClaimType),
		zap.Bool("seasonal", q.Seasonal),
	)

	resp := &Response{
		ConversationID: conversationID,
		Context:        c,
		Chart:          chart,
		Source:         SourceFallback,
	}

	if r.completer != nil && r.quota.Allow() {
		text, err := r.completer.Complete(ctx, []llm.Message{
			llm.System(systemPrompt),
			llm.User(userMessage(req.Message, c, chart != nil)),
		})
		if err != nil {
			r.metrics.ObserveLLM("error")
			r.logger.Warn("llm completion failed, using fallback",
				zap.String("conversation_id", conversationID), zap.Error(err))
		} else {
			r.metrics.ObserveLLM("ok")
			resp.Response = text
			resp.Source = SourceLLM
		}
	} else if r.completer != nil {
		r.metrics.ObserveLLM("quota_exhausted")
	}

	if resp.Source == SourceFallback {
		resp.Response = FallbackReply(c)
	}
	resp.Usage = r.quota.Usage()
	return resp, nil
}

func userMessage(question string, c Context, hasChart bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", question)

	if len(c.Predictions) > 0 {
		n := len(c.Predictions)
		if n > 3 {
			n = 3
		}
		if payload, err := json.Marshal(c.Predictions[:n]); err == nil {
			fmt.Fprintf(&b, "Prediction data: %s\n", payload)
		}
	}
	if c.Insights != nil {
		if payload, err := json.Marshal(c.Insights); err == nil {
			fmt.Fprintf(&b, "Seasonal insights: %s\n", payload)
		}
	}
	if c.DetectedCounty != "" {
		fmt.Fprintf(&b, "Detected county: %s\n", c.DetectedCounty)
	}
	if c.DetectedClaimType != "" {
		fmt.Fprintf(&b, "Detected claim type: %s\n", c.DetectedClaimType)
	}
	if hasChart {
		b.WriteString("\nA chart has been generated to visualize this data.\n")
	}
	return b.String()
}
