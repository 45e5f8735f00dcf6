package query

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/provider"
)

func passagesWithScores(scores ...float64) []models.Passage {
	out := make([]models.Passage, len(scores))
	for i, s := range scores {
		out[i] = models.Passage{Text: "text", Source: "doc.pdf", Category: "general", Score: s}
	}
	return out
}

func TestConfidenceGrading(t *testing.T) {
	r := NewResponder(testConfig(), &fakeProvider{}, quietLogger())

	cases := []struct {
		name   string
		scores []float64
		want   models.Confidence
	}{
		{"no passages", nil, models.ConfidenceLow},
		{"strong avg and max", []float64{0.9, 0.88, 0.86}, models.ConfidenceHigh},
		{"single hit at high cutoffs", []float64{0.85}, models.ConfidenceHigh},
		{"just under high max", []float64{0.84}, models.ConfidenceMedium},
		{"strong max weak avg", []float64{0.9, 0.5, 0.4}, models.ConfidenceMedium},
		{"strong avg weak max", []float64{0.7, 0.65, 0.61}, models.ConfidenceMedium},
		{"single hit at medium avg cutoff", []float64{0.6}, models.ConfidenceMedium},
		{"single hit at medium max cutoff", []float64{0.75}, models.ConfidenceMedium},
		{"weak everywhere", []float64{0.5, 0.4, 0.3}, models.ConfidenceLow},
		{"only top three count for avg", []float64{0.9, 0.9, 0.9, 0.1, 0.1}, models.ConfidenceHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.confidence(passagesWithScores(tc.scores...)); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestGenerateGroundedAnswer(t *testing.T) {
	p := &fakeProvider{
		completeFn: func(messages []provider.Message, opts provider.Options) (provider.Result, error) {
			if opts.Model != "gpt-4o" || opts.MaxTokens != 600 {
				t.Fatalf("unexpected options: %#v", opts)
			}
			user := messages[1].Content
			if !strings.Contains(user, "DOCUMENT EXCERPTS") || !strings.Contains(user, "QUESTION: vacation days?") {
				t.Fatalf("unexpected user prompt: %q", user)
			}
			return provider.Result{Content: "You get 25 days (source: handbook.pdf)."}, nil
		},
	}
	r := NewResponder(testConfig(), p, quietLogger())

	resp, err := r.Generate(context.Background(), "vacation days?", passagesWithScores(0.9, 0.88), nil)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if !resp.HasAnswer {
		t.Fatalf("expected an answer")
	}
	if resp.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", resp.Confidence)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected sources carried through, got %d", len(resp.Sources))
	}
}

func TestGenerateDetectsRefusal(t *testing.T) {
	p := &fakeProvider{
		completeFn: func([]provider.Message, provider.Options) (provider.Result, error) {
			return provider.Result{Content: "I don't have that information in the company documents."}, nil
		},
	}
	r := NewResponder(testConfig(), p, quietLogger())

	resp, err := r.Generate(context.Background(), "q", passagesWithScores(0.9, 0.9), nil)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if resp.HasAnswer {
		t.Fatalf("refusal must clear HasAnswer")
	}
	if resp.Confidence != models.ConfidenceLow {
		t.Fatalf("refusal must grade low, got %s", resp.Confidence)
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	oldBackoff, oldMax := retryBackoff, maxBackoff
	retryBackoff, maxBackoff = time.Millisecond, time.Millisecond
	defer func() { retryBackoff, maxBackoff = oldBackoff, oldMax }()

	p := &fakeProvider{}
	p.completeFn = func([]provider.Message, provider.Options) (provider.Result, error) {
		if p.completeCalls < 3 {
			return provider.Result{}, models.Transient(fmt.Errorf("status 500"))
		}
		return provider.Result{Content: "answer"}, nil
	}
	r := NewResponder(testConfig(), p, quietLogger())

	resp, err := r.Generate(context.Background(), "q", passagesWithScores(0.9), nil)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if p.completeCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.completeCalls)
	}
	if resp.Answer != "answer" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	oldBackoff, oldMax := retryBackoff, maxBackoff
	retryBackoff, maxBackoff = time.Millisecond, time.Millisecond
	defer func() { retryBackoff, maxBackoff = oldBackoff, oldMax }()

	p := &fakeProvider{
		completeFn: func([]provider.Message, provider.Options) (provider.Result, error) {
			return provider.Result{}, models.Transient(fmt.Errorf("status 503"))
		},
	}
	r := NewResponder(testConfig(), p, quietLogger())

	_, err := r.Generate(context.Background(), "q", passagesWithScores(0.9), nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if p.completeCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", p.completeCalls)
	}
}
