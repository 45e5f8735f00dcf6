package query

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/telemetry"
)

// Canned answers for failure paths. Staff are bilingual, so the messages are
// Dutch first with an English translation.
const (
	msgNoEvidence      = "Ik heb die informatie niet in de bedrijfsdocumenten. (I don't have that information in the company documents.)"
	msgRetrievalError  = "Sorry, er is een fout opgetreden. (Sorry, an error occurred.) Failed to retrieve relevant information. Please try again."
	msgGenerationError = "Sorry, er is een fout opgetreden. (Sorry, an error occurred.) Failed to generate an answer. Please try again."
)

// ConversationStore is the slice of conversation memory the engine needs.
// *memory.Store satisfies it; tests use fakes.
type ConversationStore interface {
	Turns(ctx context.Context, userID string) []models.ConversationTurn
	Append(ctx context.Context, userID, question, answer string) bool
}

// QueryOptions are per-query overrides of the configured defaults.
type QueryOptions struct {
	TopK           int
	CategoryFilter string
}

// Engine is the query orchestrator. It owns the full pipeline from raw user
// question to persisted answer and guarantees that every outcome except an
// invalid question yields a well-formed response.
type Engine struct {
	cfg       *config.Config
	retriever *Retriever
	rewriter  *Rewriter
	responder *Responder
	memory    ConversationStore
	metrics   *telemetry.Metrics
	logger    *log.Logger
}

// NewEngine wires the pipeline together. memory and metrics may be nil.
func NewEngine(cfg *config.Config, retriever *Retriever, rewriter *Rewriter, responder *Responder, memory ConversationStore, metrics *telemetry.Metrics, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[QUERY] ", log.LstdFlags)
	}
	return &Engine{
		cfg:       cfg,
		retriever: retriever,
		rewriter:  rewriter,
		responder: responder,
		memory:    memory,
		metrics:   metrics,
		logger:    logger,
	}
}

// Query answers one question for one user. The only error it returns is a
// validation error on the question itself; every other failure comes back as
// a response with a canned answer and HasAnswer false.
func (e *Engine) Query(ctx context.Context, question, userID string, opts QueryOptions) (models.QueryResponse, error) {
	start := time.Now()
	queryID := uuid.NewString()

	question = strings.Join(strings.Fields(question), " ")
	if question == "" {
		e.metrics.ObserveQuery(telemetry.OutcomeInvalid, time.Since(start).Seconds())
		return models.QueryResponse{}, &models.ValidationError{Reason: "question cannot be empty"}
	}
	if max := e.cfg.General.MaxQuestionLength; max > 0 && len(question) > max {
		e.logger.Printf("[%s] question is %d chars, over the %d limit", queryID, len(question), max)
	}

	e.logger.Printf("[%s] question from %s: %q", queryID, userID, question)

	var history []models.ConversationTurn
	if e.memory != nil {
		history = e.memory.Turns(ctx, userID)
	}

	// The rewritten question drives retrieval only. Generation and memory
	// keep the user's own words.
	searchQuestion := e.rewriter.Rewrite(ctx, question, history)

	topK := opts.TopK
	if topK == 0 {
		topK = e.cfg.Query.TopK
	}
	passages, err := e.retriever.Retrieve(ctx, models.QueryRequest{
		Question:       searchQuestion,
		TopK:           topK,
		CategoryFilter: opts.CategoryFilter,
	})
	if err != nil {
		if models.IsValidation(err) {
			e.metrics.ObserveQuery(telemetry.OutcomeInvalid, time.Since(start).Seconds())
			return models.QueryResponse{}, err
		}
		e.logger.Printf("[%s] ERROR: retrieval failed: %v", queryID, err)
		return e.finish(canned(question, msgRetrievalError), telemetry.OutcomeRetrievalError, start), nil
	}

	if len(passages) == 0 {
		e.logger.Printf("[%s] no passages above threshold", queryID)
		return e.finish(canned(question, msgNoEvidence), telemetry.OutcomeNoEvidence, start), nil
	}

	resp, err := e.responder.Generate(ctx, question, passages, history)
	if err != nil {
		e.logger.Printf("[%s] ERROR: generation failed: %v", queryID, err)
		return e.finish(canned(question, msgGenerationError), telemetry.OutcomeGenerationError, start), nil
	}

	outcome := telemetry.OutcomeAnswered
	if !resp.HasAnswer {
		outcome = telemetry.OutcomeDeclined
	} else {
		e.metrics.ObserveConfidence(string(resp.Confidence))
		if e.memory != nil && !e.memory.Append(ctx, userID, question, resp.Answer) {
			e.logger.Printf("[%s] WARNING: failed to persist conversation turn", queryID)
		}
	}

	resp = e.finish(resp, outcome, start)
	e.logger.Printf("[%s] answered in %.2fs, confidence %s, %d sources",
		queryID, resp.ElapsedSeconds, resp.Confidence, len(resp.SourceNames()))
	return resp, nil
}

// finish stamps the total elapsed time on a response and records metrics.
func (e *Engine) finish(resp models.QueryResponse, outcome string, start time.Time) models.QueryResponse {
	resp.ElapsedSeconds = time.Since(start).Seconds()
	e.metrics.ObserveQuery(outcome, resp.ElapsedSeconds)
	return resp
}

// canned builds a response around a fixed message.
func canned(question, answer string) models.QueryResponse {
	return models.QueryResponse{
		Question:   question,
		Answer:     answer,
		Sources:    []models.Passage{},
		HasAnswer:  false,
		Confidence: models.ConfidenceLow,
		Timestamp:  time.Now(),
	}
}

// Stats reports the live state of the pipeline for diagnostics.
func (e *Engine) Stats(ctx context.Context) (map[string]interface{}, error) {
	retrieverStats, err := e.retriever.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"retriever": retrieverStats,
		"config": map[string]interface{}{
			"top_k":                e.cfg.Query.TopK,
			"similarity_threshold": e.cfg.Query.SimilarityThreshold,
			"llm_model":            e.cfg.LLM.CompletionModel,
			"temperature":          e.cfg.LLM.Temperature,
			"max_tokens":           e.cfg.LLM.MaxTokens,
			"embedding_model":      e.cfg.LLM.EmbeddingModel,
		},
	}, nil
}
