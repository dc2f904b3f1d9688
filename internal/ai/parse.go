package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/interview-trainer/internal/session"
)

func parseQuestion(raw string) (*session.Question, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	text := coerceString(data["text"])
	if text == "" {
		text = coerceString(data["question_text"])
	}
	if text == "" {
		return nil, errors.New("model response has no question text")
	}

	estimated := coerceFloat(data["estimated_time"])
	if math.IsNaN(estimated) || estimated < 0 {
		estimated = 0
	}

	return &session.Question{
		Text:          text,
		Topics:        coerceStringSlice(data["topics"]),
		EstimatedTime: int(estimated),
		Context:       coerceString(data["context"]),
	}, nil
}

func parseEvaluation(raw string) (*session.Evaluation, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	overall := coerceFloat(data["overall_score"])
	if math.IsNaN(overall) {
		return nil, errors.New("model response has no overall score")
	}

	var sub session.Subscores
	if scores, ok := data["subscores"].(map[string]any); ok {
		sub = session.Subscores{
			Correctness: clampScore(coerceFloat(scores["correctness"])),
			Depth:       clampScore(coerceFloat(scores["depth"])),
			Clarity:     clampScore(coerceFloat(scores["clarity"])),
			Relevance:   clampScore(coerceFloat(scores["relevance"])),
		}
	}

	return &session.Evaluation{
		OverallScore: clampScore(overall),
		Subscores:    sub,
		Feedback:     coerceString(data["feedback"]),
		Strengths:    coerceStringSlice(data["strengths"]),
		Improvements: coerceStringSlice(data["improvements"]),
	}, nil
}

// fallbackQuestion keeps the session moving when the model output is
// unusable.
func fallbackQuestion(settings session.Settings, level int, category session.Category) *session.Question {
	text := fmt.Sprintf(
		"Describe a challenging problem you solved in a recent %s role. What was the situation, what did you do, and what was the outcome?",
		settings.JobTitle,
	)
	if category == session.CategoryTechnical {
		topic := "a technology central to the role"
		if len(settings.Keywords) > 0 {
			topic = settings.Keywords[0]
		}
		text = fmt.Sprintf(
			"Explain how you would design and troubleshoot a solution involving %s for a %s position. Walk through your reasoning step by step.",
			topic, settings.JobTitle,
		)
	}

	return &session.Question{
		Text:          text,
		Category:      category,
		Level:         level,
		EstimatedTime: 5,
	}
}

// fallbackEvaluation assigns a neutral score when the model response cannot
// be parsed, slightly rewarding longer answers.
func fallbackEvaluation(answer string) *session.Evaluation {
	score := 55.0
	if len(strings.Fields(answer)) >= 50 {
		score = 65.0
	}

	return &session.Evaluation{
		OverallScore: score,
		Subscores: session.Subscores{
			Correctness: score,
			Depth:       score,
			Clarity:     score,
			Relevance:   score,
		},
		Feedback: "The answer was recorded but could not be scored in detail. Consider elaborating with concrete examples.",
	}
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	return data, nil
}

// extractJSON strips markdown code fences the model tends to wrap JSON in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	return strings.TrimSpace(raw)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}

	return out
}
