package session

import (
	"sync"

	"go.uber.org/zap"
)

// Persister receives the restartable subset of the store on every mutation
// that affects it. Clear removes the stored snapshot entirely.
type Persister interface {
	Save(snap *Snapshot) error
	Clear() error
}

// Snapshot is the persisted subset of the session state. Transient UI flags
// and the in-flight answer draft are deliberately excluded so a reload never
// resurrects a half-typed answer for a stale question.
type Snapshot struct {
	SessionID      string     `json:"session_id"`
	Settings       Settings   `json:"settings"`
	CurrentLevel   int        `json:"current_level"`
	Questions      []Question `json:"questions,omitempty"`
	AskedCount     int        `json:"asked_count"`
	TotalQuestions int        `json:"total_questions"`
}

// Store holds all mutable state for a single session. Every mutation goes
// through a setter that enforces the data-model invariants, so an
// out-of-range value can never be observed by a reader.
type Store struct {
	mu        sync.Mutex
	persister Persister
	logger    *zap.Logger

	sessionID       string
	settings        Settings
	currentLevel    int
	levelBeforeLast int
	currentQuestion *Question
	draft           string
	lastEvaluation  *Evaluation
	history         []Record
	askedCount      int
	totalQuestions  int
	summary         *Summary

	loading bool
	failure string
}

// NewStore creates an empty store. The persister may be nil for in-memory
// only usage (tests).
func NewStore(persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		persister:       persister,
		logger:          logger,
		currentLevel:    MinLevel,
		levelBeforeLast: MinLevel,
	}
}

func (s *Store) SetSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = id
	s.persistLocked()
}

// SetSettings stores the authoritative settings and derives the initial
// level and question total from them.
func (s *Store) SetSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings = settings.Normalized()
	s.settings = settings
	s.currentLevel = settings.InitialLevel
	s.levelBeforeLast = settings.InitialLevel
	s.totalQuestions = settings.NumQuestions
	s.persistLocked()
}

func (s *Store) SetCurrentQuestion(q *Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentQuestion = q
}

func (s *Store) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = text
}

// SetLevel stores a new current level. Out-of-range values are clamped and
// reported, never stored raw. The previous level is kept so the aggregator
// can derive the actual observed delta.
func (s *Store) SetLevel(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clamped := ClampLevel(level)
	if clamped != level {
		s.logger.Warn("clamping out-of-range level",
			zap.Int("requested", level),
			zap.Int("stored", clamped),
		)
	}

	s.levelBeforeLast = s.currentLevel
	s.currentLevel = clamped
	s.persistLocked()
}

// AppendRecord adds one answered question to the history. The history is
// append-only and keeps insertion order.
func (s *Store) AppendRecord(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, rec)
	s.persistLocked()
}

// SetProgress updates the asked counter. The counter is monotonic and never
// exceeds the total, regardless of what ordinal the backend reported.
func (s *Store) SetProgress(current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total > 0 {
		s.totalQuestions = total
	}
	if current > s.totalQuestions {
		s.logger.Warn("progress ordinal exceeds question total",
			zap.Int("ordinal", current),
			zap.Int("total", s.totalQuestions),
		)
		current = s.totalQuestions
	}
	if current > s.askedCount {
		s.askedCount = current
	}
	s.persistLocked()
}

func (s *Store) SetLastEvaluation(ev *Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastEvaluation = ev
}

// SetSummary caches the final summary. The first write wins: repeated calls
// keep the stored value so summary fetching stays idempotent.
func (s *Store) SetSummary(sum *Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary != nil {
		return
	}
	s.summary = sum
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = loading
}

func (s *Store) SetFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failure = msg
}

func (s *Store) ClearFailure() {
	s.SetFailure("")
}

// Reset wipes the whole store and the persisted snapshot.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = ""
	s.settings = Settings{}
	s.currentLevel = MinLevel
	s.levelBeforeLast = MinLevel
	s.currentQuestion = nil
	s.draft = ""
	s.lastEvaluation = nil
	s.history = nil
	s.askedCount = 0
	s.totalQuestions = 0
	s.summary = nil
	s.loading = false
	s.failure = ""

	if s.persister == nil {
		return nil
	}

	return s.persister.Clear()
}

// Snapshot returns a copy of the persisted subset.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Restore rehydrates the store from a persisted snapshot. Only the
// restartable subset is populated; drafts and UI flags start clean.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = snap.SessionID
	s.settings = snap.Settings.Normalized()
	s.currentLevel = ClampLevel(snap.CurrentLevel)
	s.levelBeforeLast = s.currentLevel
	s.totalQuestions = snap.TotalQuestions
	if s.totalQuestions <= 0 {
		s.totalQuestions = s.settings.NumQuestions
	}
	s.askedCount = snap.AskedCount
	if s.askedCount > s.totalQuestions {
		s.askedCount = s.totalQuestions
	}
	s.history = nil
	for _, q := range snap.Questions {
		s.history = append(s.history, Record{Question: q})
	}
	s.currentQuestion = nil
	s.draft = ""
	s.lastEvaluation = nil
	s.summary = nil
	s.loading = false
	s.failure = ""
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionID
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

func (s *Store) CurrentLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentLevel
}

func (s *Store) CurrentQuestion() *Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentQuestion == nil {
		return nil
	}
	q := *s.currentQuestion

	return &q
}

func (s *Store) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.draft
}

func (s *Store) LastEvaluation() *Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastEvaluation == nil {
		return nil
	}
	ev := *s.lastEvaluation

	return &ev
}

// History returns a copy of the answered-question history in insertion
// order.
func (s *Store) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.history))
	copy(out, s.history)

	return out
}

func (s *Store) AskedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.askedCount
}

func (s *Store) TotalQuestions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalQuestions
}

func (s *Store) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary == nil {
		return nil
	}
	sum := *s.summary

	return &sum
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

func (s *Store) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failure
}

func (s *Store) snapshotLocked() *Snapshot {
	questions := make([]Question, 0, len(s.history))
	for _, rec := range s.history {
		questions = append(questions, rec.Question)
	}

	return &Snapshot{
		SessionID:      s.sessionID,
		Settings:       s.settings,
		CurrentLevel:   s.currentLevel,
		Questions:      questions,
		AskedCount:     s.askedCount,
		TotalQuestions: s.totalQuestions,
	}
}

func (s *Store) persistLocked() {
	if s.persister == nil || s.sessionID == "" {
		return
	}

	if err := s.persister.Save(s.snapshotLocked()); err != nil {
		s.logger.Warn("persisting session snapshot", zap.Error(err))
	}
}
