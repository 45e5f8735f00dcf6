package query

import (
	"context"
	"log"
	"strings"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/provider"
)

// Rewriter turns follow-up questions into standalone search questions using
// the recent conversation. It is strictly best-effort: any failure falls
// back to the original question so a flaky rewrite model never blocks an
// answer.
type Rewriter struct {
	cfg      *config.Config
	provider provider.Provider
	logger   *log.Logger
}

// NewRewriter creates a rewriter around the given provider.
func NewRewriter(cfg *config.Config, p provider.Provider, logger *log.Logger) *Rewriter {
	if logger == nil {
		logger = log.New(log.Writer(), "[REWRITER] ", log.LstdFlags)
	}
	return &Rewriter{cfg: cfg, provider: p, logger: logger}
}

// Rewrite returns a standalone version of question given the user's history.
// With no history the question is returned unchanged and the model is not
// called.
func (r *Rewriter) Rewrite(ctx context.Context, question string, history []models.ConversationTurn) string {
	if len(history) == 0 {
		return question
	}

	transcript := models.TranscriptString(history, r.cfg.Memory.ContextTurns)

	result, err := r.provider.Complete(ctx, []provider.Message{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: buildRewritePrompt(question, transcript)},
	}, provider.Options{
		Model:       r.cfg.LLM.RewriteModel,
		Temperature: 0,
		MaxTokens:   r.cfg.LLM.RewriteMaxTokens,
	})
	if err != nil {
		r.logger.Printf("WARNING: rewrite failed, using original question: %v", err)
		return question
	}

	rewritten := strings.TrimSpace(result.Content)
	rewritten = strings.Trim(rewritten, `"`)
	if rewritten == "" {
		return question
	}

	if rewritten != question {
		r.logger.Printf("rewrote %q -> %q", question, rewritten)
	}
	return rewritten
}
