package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveQuery(OutcomeAnswered, 1.2)
	m.ObserveQuery(OutcomeNoEvidence, 0.3)
	m.ObserveConfidence("high")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	text := string(body)
	if !strings.Contains(text, `kennisbot_queries_total{outcome="answered"} 1`) {
		t.Fatalf("missing answered counter:\n%s", text)
	}
	if !strings.Contains(text, `kennisbot_queries_total{outcome="no_evidence"} 1`) {
		t.Fatalf("missing no_evidence counter:\n%s", text)
	}
	if !strings.Contains(text, `kennisbot_answer_confidence_total{level="high"} 1`) {
		t.Fatalf("missing confidence counter:\n%s", text)
	}
	if !strings.Contains(text, "kennisbot_query_duration_seconds") {
		t.Fatalf("missing duration histogram:\n%s", text)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveQuery(OutcomeAnswered, 1.0)
	m.ObserveConfidence("high")
	if m.Handler() == nil {
		t.Fatalf("expected a handler even without metrics")
	}
}
