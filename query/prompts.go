package query

import (
	"fmt"
	"strings"

	"github.com/joostvdm/kennisbot/models"
)

// systemPrompt constrains the model to the retrieved excerpts. The language
// rule keeps Dutch questions answered in Dutch and English in English.
const systemPrompt = `You are an internal knowledge assistant for company staff. You answer questions using ONLY the document excerpts provided in each request.

Rules:
1. Base every statement on the provided excerpts. Never use outside knowledge.
2. If the excerpts do not contain the answer, say exactly: "I don't have that information in the company documents."
3. Cite the source document for each fact, like (source: handbook.pdf).
4. Answer in the language of the question: Dutch questions get Dutch answers, English questions get English answers.
5. Be direct and concise. No speculation, no padding.`

const rewriteSystemPrompt = `You rewrite follow-up questions into standalone questions. Given a conversation and a new question, produce a single self-contained question that means the same thing without needing the conversation. Keep the original language. If the question is already standalone, return it unchanged. Return only the rewritten question, nothing else.`

// buildContext renders the retrieved passages as a numbered block of
// excerpts for the user prompt.
func buildContext(passages []models.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "Source: %s\nCategory: %s\nRelevance: %.3f\nContent: %s\n", p.Source, p.Category, p.Score, p.Text)
	}
	return b.String()
}

// buildUserPrompt assembles the full user message: optional conversation
// history, the document excerpts, and the question itself. The history is
// context only, the excerpts remain the single source of truth.
func buildUserPrompt(question string, passages []models.Passage, history string) string {
	var b strings.Builder
	if history != "" {
		b.WriteString("CONVERSATION HISTORY (for context only, not a source of facts):\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}
	b.WriteString("DOCUMENT EXCERPTS (the only source of truth):\n")
	b.WriteString(buildContext(passages))
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(question)
	return b.String()
}

// buildRewritePrompt assembles the user message for the rewrite call.
func buildRewritePrompt(question, transcript string) string {
	var b strings.Builder
	b.WriteString(transcript)
	b.WriteString("\n\nNew question: ")
	b.WriteString(question)
	return b.String()
}
