package session

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinLevel and MaxLevel bound the difficulty range for a whole session.
	MinLevel = 1
	MaxLevel = 5

	// MinQuestions and MaxQuestions bound the accepted session length.
	MinQuestions = 5
	MaxQuestions = 20

	// MaxAnswerLength is the upper bound for a single submitted answer.
	MaxAnswerLength = 5000

	defaultLanguage = "en"
)

// Category classifies a question as technical or soft-skill oriented.
type Category string

const (
	CategoryTechnical Category = "technical"
	CategorySoft      Category = "soft"
)

// Settings describes one interview session as requested by the user. The
// backend echoes the authoritative version back on start.
type Settings struct {
	JobTitle     string   `json:"job_title" mapstructure:"job_title"`
	NumQuestions int      `json:"num_questions" mapstructure:"num_questions"`
	SoftPct      float64  `json:"soft_pct" mapstructure:"soft_pct"`
	InitialLevel int      `json:"initial_level" mapstructure:"initial_level"`
	Keywords     []string `json:"keywords,omitempty" mapstructure:"keywords"`
	Language     string   `json:"language,omitempty" mapstructure:"language"`
}

// Validate checks the settings before any network call is made.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.JobTitle) == "" {
		return &ValidationError{Field: "job_title", Reason: "job title is required"}
	}
	if s.NumQuestions < MinQuestions || s.NumQuestions > MaxQuestions {
		return &ValidationError{
			Field:  "num_questions",
			Reason: fmt.Sprintf("question count must be between %d and %d", MinQuestions, MaxQuestions),
		}
	}
	if s.SoftPct < 0 || s.SoftPct > 1 {
		return &ValidationError{Field: "soft_pct", Reason: "soft skill fraction must be between 0 and 1"}
	}
	if s.InitialLevel < MinLevel || s.InitialLevel > MaxLevel {
		return &ValidationError{
			Field:  "initial_level",
			Reason: fmt.Sprintf("initial level must be between %d and %d", MinLevel, MaxLevel),
		}
	}

	return nil
}

// Normalized returns a copy with defaults filled in.
func (s Settings) Normalized() Settings {
	if strings.TrimSpace(s.Language) == "" {
		s.Language = defaultLanguage
	}
	s.InitialLevel = ClampLevel(s.InitialLevel)

	return s
}

// Question is the canonical internal question shape. Collaborator responses
// are normalized into it at the boundary and it is immutable once issued.
type Question struct {
	// Ordinal is the 1-based question number within the session.
	Ordinal       int      `json:"ordinal"`
	ID            string   `json:"id,omitempty"`
	Text          string   `json:"text"`
	Category      Category `json:"category"`
	Level         int      `json:"level"`
	Topics        []string `json:"topics,omitempty"`
	EstimatedTime int      `json:"estimated_time,omitempty"`
	Context       string   `json:"context,omitempty"`
}

// Subscores breaks the overall score down per criterion, each in [0,100].
type Subscores struct {
	Correctness float64 `json:"correctness" mapstructure:"correctness"`
	Depth       float64 `json:"depth" mapstructure:"depth"`
	Clarity     float64 `json:"clarity" mapstructure:"clarity"`
	Relevance   float64 `json:"relevance" mapstructure:"relevance"`
}

// Evaluation is the scored result of one answer. It is created only from a
// successful evaluator call and never mutated afterwards.
type Evaluation struct {
	OverallScore float64   `json:"overall_score"`
	Subscores    Subscores `json:"subscores"`
	Feedback     string    `json:"feedback"`
	// LevelDelta is the evaluator recommendation. The effective level change
	// is recomputed after clamping, see Progress.
	LevelDelta   int      `json:"level_delta"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// Record pairs an issued question with the submitted answer and evaluation.
type Record struct {
	Question   Question   `json:"question"`
	Answer     string     `json:"answer"`
	Evaluation Evaluation `json:"evaluation"`
}

// Summary is the final aggregate for a completed session.
type Summary struct {
	OverallScore        float64   `json:"overall_score"`
	TechnicalScore      float64   `json:"technical_score"`
	SoftSkillsScore     float64   `json:"soft_skills_score"`
	FinalLevel          int       `json:"final_level"`
	QuestionsAnswered   int       `json:"questions_answered"`
	Strengths           []string  `json:"strengths,omitempty"`
	AreasForImprovement []string  `json:"areas_for_improvement,omitempty"`
	Recommendation      string    `json:"recommendation"`
	CompletedAt         time.Time `json:"completed_at"`
}

// Started is returned by the question source when a session is created. The
// settings carried here are authoritative.
type Started struct {
	SessionID    string
	CurrentLevel int
	AskedCount   int
	Settings     Settings
}

// SubmitResult is the evaluator response for one submitted answer.
type SubmitResult struct {
	Evaluation Evaluation
	// NewLevel is the level the evaluator reports. It is advisory: the
	// controller applies LevelDelta with clamping and logs a mismatch.
	NewLevel int
	Complete bool
}

// ClampLevel forces a level into the valid [MinLevel, MaxLevel] range.
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}

	return level
}
