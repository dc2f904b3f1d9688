package simulator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interview-trainer/internal/session"

	"github.com/mitchellh/mapstructure"
)

// The backend is not consistent about field naming across endpoints
// (q_id vs question_id, level vs difficulty_level, level_adjustment vs
// level_delta). Everything is decoded through alias resolution into one
// canonical shape here so downstream logic never sees the drift.

type wireStarted struct {
	SessionID    string           `mapstructure:"interview_id"`
	CurrentLevel int              `mapstructure:"current_level"`
	AskedCount   int              `mapstructure:"asked_count"`
	Settings     session.Settings `mapstructure:"settings"`
}

type wireQuestion struct {
	Ordinal       int      `mapstructure:"q_id"`
	ID            string   `mapstructure:"question_id"`
	Text          string   `mapstructure:"text"`
	Category      string   `mapstructure:"type"`
	Level         int      `mapstructure:"level"`
	Topics        []string `mapstructure:"topics"`
	EstimatedTime int      `mapstructure:"estimated_time"`
	Context       string   `mapstructure:"context"`
}

type wireEvaluation struct {
	OverallScore float64           `mapstructure:"overall_score"`
	Subscores    session.Subscores `mapstructure:"subscores"`
	Feedback     string            `mapstructure:"feedback"`
	LevelDelta   int               `mapstructure:"level_adjustment"`
	Strengths    []string          `mapstructure:"strengths"`
	Improvements []string          `mapstructure:"improvements"`
}

type wireSubmitResult struct {
	Evaluation wireEvaluation `mapstructure:"evaluation"`
	NewLevel   int            `mapstructure:"new_level"`
	IsComplete bool           `mapstructure:"is_complete"`
}

type wireSummary struct {
	OverallScore        float64  `mapstructure:"overall_score"`
	TechnicalScore      float64  `mapstructure:"technical_score"`
	SoftSkillsScore     float64  `mapstructure:"soft_skills_score"`
	FinalLevel          int      `mapstructure:"final_level"`
	QuestionsAnswered   int      `mapstructure:"questions_answered"`
	Strengths           []string `mapstructure:"strengths"`
	AreasForImprovement []string `mapstructure:"areas_for_improvement"`
	Recommendation      string   `mapstructure:"recommendation"`
	CompletedAt         string   `mapstructure:"completed_at"`
}

func normalizeStarted(raw map[string]any) (*session.Started, error) {
	applyAliases(raw, map[string][]string{
		"interview_id":  {"session_id", "id"},
		"current_level": {"level", "initial_level"},
	})

	var wire wireStarted
	if err := decodeWeak(raw, &wire); err != nil {
		return nil, err
	}
	if strings.TrimSpace(wire.SessionID) == "" {
		return nil, errors.New("missing session id")
	}

	return &session.Started{
		SessionID:    wire.SessionID,
		CurrentLevel: session.ClampLevel(wire.CurrentLevel),
		AskedCount:   wire.AskedCount,
		Settings:     wire.Settings,
	}, nil
}

func normalizeQuestion(raw map[string]any) (*session.Question, []*session.IntegrityError, error) {
	applyAliases(raw, map[string][]string{
		"q_id":        {"ordinal", "question_number"},
		"question_id": {"id"},
		"type":        {"category"},
		"level":       {"difficulty_level", "difficulty"},
	})

	var wire wireQuestion
	if err := decodeWeak(raw, &wire); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(wire.Text) == "" {
		return nil, nil, errors.New("missing question text")
	}

	var warnings []*session.IntegrityError

	level := session.ClampLevel(wire.Level)
	if level != wire.Level {
		warnings = append(warnings, &session.IntegrityError{
			Field:  "level",
			Reason: fmt.Sprintf("%d outside valid range, clamped to %d", wire.Level, level),
		})
	}

	category := session.Category(strings.ToLower(strings.TrimSpace(wire.Category)))
	if category != session.CategoryTechnical && category != session.CategorySoft {
		warnings = append(warnings, &session.IntegrityError{
			Field:  "type",
			Reason: fmt.Sprintf("unknown category %q, defaulting to technical", wire.Category),
		})
		category = session.CategoryTechnical
	}

	if wire.Ordinal < 1 {
		warnings = append(warnings, &session.IntegrityError{
			Field:  "q_id",
			Reason: fmt.Sprintf("non-positive ordinal %d, defaulting to 1", wire.Ordinal),
		})
		wire.Ordinal = 1
	}

	return &session.Question{
		Ordinal:       wire.Ordinal,
		ID:            wire.ID,
		Text:          wire.Text,
		Category:      category,
		Level:         level,
		Topics:        wire.Topics,
		EstimatedTime: wire.EstimatedTime,
		Context:       wire.Context,
	}, warnings, nil
}

func normalizeSubmitResult(raw map[string]any) (*session.SubmitResult, []*session.IntegrityError, error) {
	if ev, ok := raw["evaluation"].(map[string]any); ok {
		applyAliases(ev, map[string][]string{
			"level_adjustment": {"level_delta"},
			"overall_score":    {"score"},
		})
	}

	var wire wireSubmitResult
	if err := decodeWeak(raw, &wire); err != nil {
		return nil, nil, err
	}

	var warnings []*session.IntegrityError

	score, w := clampScore("evaluation.overall_score", wire.Evaluation.OverallScore)
	warnings = append(warnings, w...)

	sub := wire.Evaluation.Subscores
	sub.Correctness, w = clampScore("subscores.correctness", sub.Correctness)
	warnings = append(warnings, w...)
	sub.Depth, w = clampScore("subscores.depth", sub.Depth)
	warnings = append(warnings, w...)
	sub.Clarity, w = clampScore("subscores.clarity", sub.Clarity)
	warnings = append(warnings, w...)
	sub.Relevance, w = clampScore("subscores.relevance", sub.Relevance)
	warnings = append(warnings, w...)

	delta := wire.Evaluation.LevelDelta
	if delta < -1 || delta > 1 {
		warnings = append(warnings, &session.IntegrityError{
			Field:  "evaluation.level_adjustment",
			Reason: fmt.Sprintf("delta %d outside [-1,1], reduced to its sign", delta),
		})
		if delta > 1 {
			delta = 1
		} else {
			delta = -1
		}
	}

	return &session.SubmitResult{
		Evaluation: session.Evaluation{
			OverallScore: score,
			Subscores:    sub,
			Feedback:     wire.Evaluation.Feedback,
			LevelDelta:   delta,
			Strengths:    wire.Evaluation.Strengths,
			Improvements: wire.Evaluation.Improvements,
		},
		NewLevel: wire.NewLevel,
		Complete: wire.IsComplete,
	}, warnings, nil
}

func normalizeSummary(raw map[string]any) (*session.Summary, []*session.IntegrityError, error) {
	var wire wireSummary
	if err := decodeWeak(raw, &wire); err != nil {
		return nil, nil, err
	}

	var warnings []*session.IntegrityError

	completedAt, err := time.Parse(time.RFC3339, wire.CompletedAt)
	if err != nil {
		completedAt = time.Now().UTC()
		warnings = append(warnings, &session.IntegrityError{
			Field:  "completed_at",
			Reason: fmt.Sprintf("unparsable timestamp %q, using current time", wire.CompletedAt),
		})
	}

	level := session.ClampLevel(wire.FinalLevel)
	if level != wire.FinalLevel {
		warnings = append(warnings, &session.IntegrityError{
			Field:  "final_level",
			Reason: fmt.Sprintf("%d outside valid range, clamped to %d", wire.FinalLevel, level),
		})
	}

	return &session.Summary{
		OverallScore:        wire.OverallScore,
		TechnicalScore:      wire.TechnicalScore,
		SoftSkillsScore:     wire.SoftSkillsScore,
		FinalLevel:          level,
		QuestionsAnswered:   wire.QuestionsAnswered,
		Strengths:           wire.Strengths,
		AreasForImprovement: wire.AreasForImprovement,
		Recommendation:      wire.Recommendation,
		CompletedAt:         completedAt,
	}, warnings, nil
}

// applyAliases backfills each canonical key from the first alternate
// present in the payload.
func applyAliases(raw map[string]any, aliases map[string][]string) {
	for canonical, alternates := range aliases {
		if _, ok := raw[canonical]; ok {
			continue
		}
		for _, alt := range alternates {
			if v, ok := raw[alt]; ok {
				raw[canonical] = v
				break
			}
		}
	}
}

func decodeWeak(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(raw)
}

func clampScore(field string, score float64) (float64, []*session.IntegrityError) {
	clamped := score
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}
	if clamped != score {
		return clamped, []*session.IntegrityError{{
			Field:  field,
			Reason: fmt.Sprintf("score %.1f outside [0,100], clamped to %.1f", score, clamped),
		}}
	}

	return clamped, nil
}
