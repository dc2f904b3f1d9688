package ai

import (
	"strings"
	"testing"

	"github.com/spigell/interview-trainer/internal/session"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"text": "hi"}`, `{"text": "hi"}`},
		{"fenced", "```json\n{\"text\": \"hi\"}\n```", `{"text": "hi"}`},
		{"fenced without language", "```\n{\"text\": \"hi\"}\n```", `{"text": "hi"}`},
		{"surrounding whitespace", "  {\"a\": 1}  \n", `{"a": 1}`},
		{"stray backticks", "`{\"a\": 1}`", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseQuestion(t *testing.T) {
	t.Run("canonical field", func(t *testing.T) {
		q, err := parseQuestion(`{"text": "explain goroutines", "topics": ["concurrency"], "estimated_time": 5, "context": "runtime"}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if q.Text != "explain goroutines" || q.EstimatedTime != 5 || q.Context != "runtime" {
			t.Fatalf("unexpected question %+v", q)
		}
		if len(q.Topics) != 1 || q.Topics[0] != "concurrency" {
			t.Fatalf("unexpected topics %v", q.Topics)
		}
	})

	t.Run("alternate field name", func(t *testing.T) {
		q, err := parseQuestion(`{"question_text": "explain channels"}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if q.Text != "explain channels" {
			t.Fatalf("unexpected text %q", q.Text)
		}
	})

	t.Run("numeric string duration", func(t *testing.T) {
		q, err := parseQuestion(`{"text": "q", "estimated_time": "7"}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if q.EstimatedTime != 7 {
			t.Fatalf("expected 7, got %d", q.EstimatedTime)
		}
	})

	t.Run("missing text", func(t *testing.T) {
		if _, err := parseQuestion(`{"topics": ["a"]}`); err == nil {
			t.Fatalf("expected an error")
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := parseQuestion("certainly! here is a question"); err == nil {
			t.Fatalf("expected an error")
		}
	})
}

func TestParseEvaluation(t *testing.T) {
	t.Run("clamps out of range scores", func(t *testing.T) {
		ev, err := parseEvaluation(`{
			"overall_score": 130,
			"subscores": {"correctness": -5, "depth": 200, "clarity": 80, "relevance": "90"}
		}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ev.OverallScore != 100 {
			t.Fatalf("expected clamped overall 100, got %v", ev.OverallScore)
		}
		want := session.Subscores{Correctness: 0, Depth: 100, Clarity: 80, Relevance: 90}
		if ev.Subscores != want {
			t.Fatalf("expected %+v, got %+v", want, ev.Subscores)
		}
	})

	t.Run("missing overall score", func(t *testing.T) {
		if _, err := parseEvaluation(`{"feedback": "nice"}`); err == nil {
			t.Fatalf("expected an error")
		}
	})

	t.Run("string lists", func(t *testing.T) {
		ev, err := parseEvaluation(`{"overall_score": 75, "strengths": ["clear", "", "  focused "], "improvements": 42}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(ev.Strengths) != 2 || ev.Strengths[1] != "focused" {
			t.Fatalf("unexpected strengths %v", ev.Strengths)
		}
		if ev.Improvements != nil {
			t.Fatalf("expected non-list improvements dropped, got %v", ev.Improvements)
		}
	})
}

func TestFallbackEvaluationRewardsLongerAnswers(t *testing.T) {
	short := fallbackEvaluation("a few words only")
	if short.OverallScore != 55 {
		t.Fatalf("expected 55 for a short answer, got %v", short.OverallScore)
	}

	long := fallbackEvaluation(strings.Repeat("word ", 60))
	if long.OverallScore != 65 {
		t.Fatalf("expected 65 for a long answer, got %v", long.OverallScore)
	}
}

func TestFallbackQuestionUsesKeywords(t *testing.T) {
	settings := engineSettings()

	tech := fallbackQuestion(settings, 3, session.CategoryTechnical)
	if !strings.Contains(tech.Text, "kubernetes") {
		t.Fatalf("expected the first keyword in the technical fallback, got %q", tech.Text)
	}
	if tech.Level != 3 || tech.Category != session.CategoryTechnical {
		t.Fatalf("unexpected fallback shape %+v", tech)
	}

	soft := fallbackQuestion(settings, 2, session.CategorySoft)
	if !strings.Contains(soft.Text, settings.JobTitle) {
		t.Fatalf("expected the job title in the soft fallback, got %q", soft.Text)
	}
}
