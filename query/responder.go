package query

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/provider"
)

// Responder generates grounded answers from retrieved passages and grades
// their confidence.
type Responder struct {
	cfg      *config.Config
	provider provider.Provider
	logger   *log.Logger
}

// NewResponder creates a responder around the given provider.
func NewResponder(cfg *config.Config, p provider.Provider, logger *log.Logger) *Responder {
	if logger == nil {
		logger = log.New(log.Writer(), "[RESPONDER] ", log.LstdFlags)
	}
	return &Responder{cfg: cfg, provider: p, logger: logger}
}

// Generate asks the model to answer question from passages. The history is
// passed for conversational continuity only, the model is instructed to treat
// the passages as the single source of truth. The caller converts errors
// into a canned response.
func (r *Responder) Generate(ctx context.Context, question string, passages []models.Passage, history []models.ConversationTurn) (models.QueryResponse, error) {
	transcript := models.TranscriptString(history, r.cfg.Memory.ContextTurns)

	var result provider.Result
	err := withRetry(ctx, r.logger, "completion", func() error {
		var genErr error
		result, genErr = r.provider.Complete(ctx, []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(question, passages, transcript)},
		}, provider.Options{
			Model:       r.cfg.LLM.CompletionModel,
			Temperature: r.cfg.LLM.Temperature,
			MaxTokens:   r.cfg.LLM.MaxTokens,
		})
		return genErr
	})
	if err != nil {
		return models.QueryResponse{}, err
	}

	answer := strings.TrimSpace(result.Content)
	declined := r.declined(answer)

	resp := models.QueryResponse{
		Question:   question,
		Answer:     answer,
		Sources:    passages,
		HasAnswer:  !declined,
		Confidence: r.confidence(passages),
		Timestamp:  time.Now(),
	}
	if declined {
		resp.Confidence = models.ConfidenceLow
	}
	return resp, nil
}

// declined reports whether the answer is a refusal rather than an answer.
// Matching is case-insensitive over the configured phrases.
func (r *Responder) declined(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range r.cfg.Query.RefusalPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// confidence grades the retrieval quality behind an answer. High needs both
// a strong top hit and a strong top-3 average, medium needs either at its
// lower cutoff.
func (r *Responder) confidence(passages []models.Passage) models.Confidence {
	if len(passages) == 0 {
		return models.ConfidenceLow
	}

	top := passages
	if len(top) > 3 {
		top = top[:3]
	}
	var sum float64
	for _, p := range top {
		sum += p.Score
	}
	avg := sum / float64(len(top))
	max := passages[0].Score
	for _, p := range passages {
		if p.Score > max {
			max = p.Score
		}
	}

	q := r.cfg.Query
	switch {
	case avg >= q.ConfidenceHighAvg && max >= q.ConfidenceHighMax:
		return models.ConfidenceHigh
	case avg >= q.ConfidenceMediumAvg || max >= q.ConfidenceMediumMax:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
