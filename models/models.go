package models

import (
	"fmt"
	"strings"
	"time"
)

// Confidence is a coarse quality grade derived from retrieval scores.
// It is computed per response and never persisted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Passage is a single chunk retrieved from the vector index, together with
// its provenance. Passages are immutable after creation; the namespace they
// came from is set explicitly when the passage is built.
type Passage struct {
	Text      string                 `json:"text"`
	Source    string                 `json:"source"`
	Category  string                 `json:"category"`
	Score     float64                `json:"similarity_score"`
	Namespace string                 `json:"namespace"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (p Passage) String() string {
	return fmt.Sprintf("[%s] (score: %.3f)", p.Source, p.Score)
}

// QueryRequest carries a single retrieval request.
type QueryRequest struct {
	Question       string `json:"question"`
	TopK           int    `json:"top_k"`
	CategoryFilter string `json:"category_filter,omitempty"`
}

// Validate checks the request against the configured category set. An
// invalid request must never reach the index.
func (r QueryRequest) Validate(categories []string) error {
	if strings.TrimSpace(r.Question) == "" {
		return &ValidationError{Reason: "question cannot be empty"}
	}
	if r.TopK < 1 || r.TopK > 20 {
		return &ValidationError{Reason: fmt.Sprintf("top_k must be between 1 and 20, got %d", r.TopK)}
	}
	if r.CategoryFilter != "" {
		found := false
		for _, c := range categories {
			if c == r.CategoryFilter {
				found = true
				break
			}
		}
		if !found {
			return &ValidationError{Reason: fmt.Sprintf("invalid category: %s", r.CategoryFilter)}
		}
	}
	return nil
}

// QueryResponse is what every caller gets back: a well-formed answer object
// regardless of whether generation succeeded, declined, or failed.
type QueryResponse struct {
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Sources        []Passage  `json:"sources"`
	HasAnswer      bool       `json:"has_answer"`
	Confidence     Confidence `json:"confidence"`
	ElapsedSeconds float64    `json:"response_time_seconds"`
	Timestamp      time.Time  `json:"timestamp"`
}

// SourceNames returns the unique source identifiers behind the answer, in
// first-seen order.
func (r QueryResponse) SourceNames() []string {
	seen := make(map[string]bool, len(r.Sources))
	var names []string
	for _, p := range r.Sources {
		if !seen[p.Source] {
			seen[p.Source] = true
			names = append(names, p.Source)
		}
	}
	return names
}

// ConversationTurn is one question/answer pair in a user's history.
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptString renders the last n turns as a plain text transcript for
// prompt building. Returns "" for an empty history.
func TranscriptString(turns []ConversationTurn, n int) string {
	if len(turns) == 0 || n <= 0 {
		return ""
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:")
	for _, t := range turns {
		fmt.Fprintf(&b, "\nUser: %s\nAssistant: %s", t.Question, t.Answer)
	}
	return b.String()
}
