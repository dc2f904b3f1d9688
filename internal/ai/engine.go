package ai

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spigell/interview-trainer/internal/session"
	"github.com/spigell/interview-trainer/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Sliding window over recent overall scores used for level adjustment.
	scoreWindowSize = 3
	// Window average at or above this raises the level, at or below the
	// lower one drops it.
	raiseThreshold = 80.0
	lowerThreshold = 50.0

	defaultMaxLogLength = 200
)

// Engine runs interview sessions locally. It implements both
// session.QuestionSource and session.Evaluator.
type Engine struct {
	generator ContentGenerator
	logger    *zap.Logger
	maxLogLen int
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	settings session.Settings
	level    int
	asked    int
	pending  *session.Question
	records  []answered
	recent   []float64
	complete bool
	summary  *session.Summary
}

type answered struct {
	question   session.Question
	evaluation session.Evaluation
}

func NewEngine(generator ContentGenerator, logger *zap.Logger, maxLogLength int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Engine{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		now:       time.Now,
		sessions:  make(map[string]*liveSession),
	}
}

// StartInterview creates a local session and echoes the normalized settings
// back, mirroring the backend contract.
func (e *Engine) StartInterview(_ context.Context, settings session.Settings) (*session.Started, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings = settings.Normalized()

	id := uuid.NewString()

	e.mu.Lock()
	e.sessions[id] = &liveSession{
		settings: settings,
		level:    settings.InitialLevel,
	}
	e.mu.Unlock()

	e.logger.Debug("local session created",
		zap.String("session_id", id),
		zap.String("job_title", settings.JobTitle),
		zap.Int("level", settings.InitialLevel),
	)

	return &session.Started{
		SessionID:    id,
		CurrentLevel: settings.InitialLevel,
		Settings:     settings,
	}, nil
}

// NextQuestion generates the next question via the model. Re-requesting
// while a question is unanswered returns the pending one; when the model
// output is unusable a deterministic fallback question is issued instead of
// failing the session.
func (e *Engine) NextQuestion(ctx context.Context, sessionID string) (*session.Question, bool, error) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return nil, false, session.ErrSessionExpired
	}
	if s.complete || s.summary != nil {
		e.mu.Unlock()
		return nil, true, nil
	}
	if s.pending != nil {
		q := *s.pending
		e.mu.Unlock()
		return &q, false, nil
	}
	if s.asked >= s.settings.NumQuestions {
		e.mu.Unlock()
		return nil, true, nil
	}

	settings := s.settings
	level := s.level
	ordinal := s.asked + 1
	category := s.nextCategory()
	previous := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		previous = append(previous, rec.question.Text)
	}
	e.mu.Unlock()

	prompt := questionPrompt(settings, level, category, previous)
	e.logger.Debug("question generation request",
		zap.String("session_id", sessionID),
		zap.Int("ordinal", ordinal),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	question := e.generateQuestion(ctx, prompt, settings, level, category)
	question.Ordinal = ordinal

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok = e.sessions[sessionID]
	if !ok {
		return nil, false, session.ErrSessionExpired
	}
	if s.pending != nil {
		// Another request won the race, hand its question out.
		q := *s.pending
		return &q, false, nil
	}
	s.asked = ordinal
	s.pending = question

	q := *question

	return &q, false, nil
}

func (e *Engine) generateQuestion(ctx context.Context, prompt string, settings session.Settings, level int, category session.Category) *session.Question {
	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err == nil {
		question, parseErr := parseQuestion(raw)
		if parseErr == nil {
			question.ID = uuid.NewString()
			question.Level = level
			question.Category = category
			return question
		}
		err = parseErr
	}

	e.logger.Warn("question generation failed, using fallback question", zap.Error(err))

	return fallbackQuestion(settings, level, category)
}

// EvaluateAnswer scores the pending answer with the model and applies the
// sliding-window level policy. The recommended delta always matches the
// level actually applied.
func (e *Engine) EvaluateAnswer(ctx context.Context, sessionID, answer string) (*session.SubmitResult, error) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return nil, session.ErrSessionExpired
	}
	if s.pending == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active question to answer")
	}
	question := *s.pending
	settings := s.settings
	e.mu.Unlock()

	prompt := evaluationPrompt(question, answer, settings.JobTitle)
	e.logger.Debug("evaluation request",
		zap.String("session_id", sessionID),
		zap.Int("ordinal", question.Ordinal),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, &session.TransportError{Op: "evaluate answer", Err: err}
	}

	evaluation, err := parseEvaluation(raw)
	if err != nil {
		e.logger.Warn("unusable evaluation response, using neutral fallback",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		evaluation = fallbackEvaluation(answer)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok = e.sessions[sessionID]
	if !ok || s.pending == nil {
		return nil, session.ErrSessionExpired
	}

	s.recent = append(s.recent, evaluation.OverallScore)
	if len(s.recent) > scoreWindowSize {
		s.recent = s.recent[len(s.recent)-scoreWindowSize:]
	}

	newLevel := updateLevel(s.level, s.recent)
	evaluation.LevelDelta = newLevel - s.level
	s.level = newLevel

	s.records = append(s.records, answered{question: *s.pending, evaluation: *evaluation})
	s.pending = nil

	if s.asked >= s.settings.NumQuestions {
		s.complete = true
	}

	return &session.SubmitResult{
		Evaluation: *evaluation,
		NewLevel:   newLevel,
		Complete:   s.complete,
	}, nil
}

// Summary aggregates the finished session. It is computed once and cached.
func (e *Engine) Summary(_ context.Context, sessionID string) (*session.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionExpired
	}
	if s.summary != nil {
		sum := *s.summary
		return &sum, nil
	}
	if len(s.records) == 0 {
		return nil, fmt.Errorf("no answered questions to summarize")
	}

	var total, techTotal, softTotal float64
	var techCount, softCount int
	strengths := make(map[string]int)
	improvements := make(map[string]int)

	for _, rec := range s.records {
		score := rec.evaluation.OverallScore
		total += score
		switch rec.question.Category {
		case session.CategorySoft:
			softTotal += score
			softCount++
		default:
			techTotal += score
			techCount++
		}
		for _, item := range rec.evaluation.Strengths {
			strengths[item]++
		}
		for _, item := range rec.evaluation.Improvements {
			improvements[item]++
		}
	}

	avg := total / float64(len(s.records))
	techAvg := 0.0
	if techCount > 0 {
		techAvg = techTotal / float64(techCount)
	}
	softAvg := 0.0
	if softCount > 0 {
		softAvg = softTotal / float64(softCount)
	}

	s.summary = &session.Summary{
		OverallScore:        round2(avg),
		TechnicalScore:      round2(techAvg),
		SoftSkillsScore:     round2(softAvg),
		FinalLevel:          s.level,
		QuestionsAnswered:   len(s.records),
		Strengths:           topItems(strengths, 3),
		AreasForImprovement: topItems(improvements, 3),
		Recommendation:      recommendation(avg),
		CompletedAt:         e.now().UTC(),
	}

	sum := *s.summary

	return &sum, nil
}

// nextCategory keeps the running soft-question ratio tracking the requested
// fraction.
func (s *liveSession) nextCategory() session.Category {
	target := s.settings.SoftPct
	total := len(s.records)
	if s.pending != nil {
		total++
	}
	if total == 0 {
		if target > 0 {
			return session.CategorySoft
		}
		return session.CategoryTechnical
	}

	softCount := 0
	for _, rec := range s.records {
		if rec.question.Category == session.CategorySoft {
			softCount++
		}
	}
	ratio := float64(softCount) / float64(total)

	switch {
	case ratio < target:
		return session.CategorySoft
	case ratio > target:
		return session.CategoryTechnical
	default:
		if rand.Float64() < target {
			return session.CategorySoft
		}
		return session.CategoryTechnical
	}
}

// updateLevel applies the sliding-window difficulty policy and clamps the
// result.
func updateLevel(current int, recent []float64) int {
	if len(recent) == 0 {
		return current
	}

	var sum float64
	for _, score := range recent {
		sum += score
	}
	avg := sum / float64(len(recent))

	switch {
	case avg >= raiseThreshold:
		return session.ClampLevel(current + 1)
	case avg <= lowerThreshold:
		return session.ClampLevel(current - 1)
	default:
		return current
	}
}

func recommendation(avg float64) string {
	switch {
	case avg >= 80:
		return "Strong candidate - Highly recommended for the position"
	case avg >= 70:
		return "Good candidate - Recommended with minor reservations"
	case avg >= 60:
		return "Average candidate - Consider with additional evaluation"
	default:
		return "Below expectations - Not recommended without significant improvement"
	}
}

// topItems returns the n most frequent entries, most frequent first. Ties
// resolve alphabetically to keep the output stable.
func topItems(counts map[string]int, n int) []string {
	items := make([]string, 0, len(counts))
	for item := range counts {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if counts[items[i]] != counts[items[j]] {
			return counts[items[i]] > counts[items[j]]
		}
		return items[i] < items[j]
	})

	if len(items) > n {
		items = items[:n]
	}

	return items
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
