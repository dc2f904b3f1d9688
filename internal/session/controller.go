package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the controller lifecycle state.
type State int

const (
	StateSetup State = iota
	StateStarting
	StateAwaitingAnswer
	StateEvaluating
	StateShowingFeedback
	StateSummarizing
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateStarting:
		return "starting"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateEvaluating:
		return "evaluating"
	case StateShowingFeedback:
		return "showing_feedback"
	case StateSummarizing:
		return "summarizing"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// QuestionSource issues sessions, questions and the final summary. The
// NextQuestion done result reports that the session has no further
// questions.
type QuestionSource interface {
	StartInterview(ctx context.Context, settings Settings) (*Started, error)
	NextQuestion(ctx context.Context, sessionID string) (q *Question, done bool, err error)
	Summary(ctx context.Context, sessionID string) (*Summary, error)
}

// Evaluator scores a free-text answer for the current question of a session.
type Evaluator interface {
	EvaluateAnswer(ctx context.Context, sessionID, answer string) (*SubmitResult, error)
}

const (
	defaultNextDelay     = 2 * time.Second
	defaultCompleteDelay = 3 * time.Second
)

// Controller drives the session lifecycle. It owns all interaction with the
// question source and the evaluator; presentation code reads the store and
// calls controller methods, never mutates state directly.
type Controller struct {
	// NextDelay is the auto-advance delay towards the next question,
	// CompleteDelay the longer delay before completion.
	NextDelay     time.Duration
	CompleteDelay time.Duration

	ctx    context.Context
	store  *Store
	source QuestionSource
	eval   Evaluator
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	fetching   bool
	submitting bool
	timer      *advanceTimer
}

// NewController wires the controller to its collaborators. ctx bounds all
// deferred work (auto-advance transitions) the controller spawns on its own.
func NewController(ctx context.Context, store *Store, source QuestionSource, eval Evaluator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		NextDelay:     defaultNextDelay,
		CompleteDelay: defaultCompleteDelay,
		ctx:           ctx,
		store:         store,
		source:        source,
		eval:          eval,
		logger:        logger,
		state:         StateSetup,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Store exposes the session state for read-only consumption by the UI
// layer.
func (c *Controller) Store() *Store {
	return c.store
}

// Start validates the settings, creates the backend session and fetches the
// first question. On failure no partial session is retained.
func (c *Controller) Start(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		c.store.SetFailure(err.Error())
		return err
	}

	c.mu.Lock()
	if c.state != StateSetup {
		c.mu.Unlock()
		return fmt.Errorf("start: session already in progress (state %s)", c.state)
	}
	c.state = StateStarting
	gen := c.gen
	c.mu.Unlock()

	c.store.SetLoading(true)
	started, err := c.source.StartInterview(ctx, settings.Normalized())
	c.store.SetLoading(false)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateSetup
		c.mu.Unlock()
		c.store.SetFailure(err.Error())
		return err
	}

	// The echoed settings are authoritative, including the starting level.
	authoritative := started.Settings.Normalized()
	authoritative.InitialLevel = ClampLevel(started.CurrentLevel)
	c.store.SetSessionID(started.SessionID)
	c.store.SetSettings(authoritative)
	c.store.ClearFailure()
	c.state = StateAwaitingAnswer
	c.mu.Unlock()

	c.logger.Debug("interview session started",
		zap.String("session_id", started.SessionID),
		zap.Int("level", started.CurrentLevel),
		zap.Int("questions", authoritative.NumQuestions),
	)

	return c.FetchNext(ctx)
}

// Resume rehydrates a persisted session. The backend session is not assumed
// valid: the first network call may still report expiry and route back to
// setup.
func (c *Controller) Resume(snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return &ValidationError{Field: "snapshot", Reason: "no resumable session"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSetup {
		return fmt.Errorf("resume: session already in progress (state %s)", c.state)
	}

	c.store.Restore(snap)
	c.state = StateAwaitingAnswer

	c.logger.Debug("resumed session from snapshot",
		zap.String("session_id", snap.SessionID),
		zap.Int("asked", snap.AskedCount),
		zap.Int("total", snap.TotalQuestions),
	)

	return nil
}

// FetchNext requests the next question. A call while a question is already
// pending and unanswered, or while another fetch is in flight, is a no-op:
// rapid duplicate UI triggers collapse to a single network call.
func (c *Controller) FetchNext(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateAwaitingAnswer && c.state != StateShowingFeedback {
		c.mu.Unlock()
		return fmt.Errorf("fetch next: not expecting a question (state %s)", c.state)
	}
	if c.fetching {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateAwaitingAnswer && c.store.CurrentQuestion() != nil {
		c.mu.Unlock()
		return nil
	}
	c.cancelTimerLocked()
	c.fetching = true
	gen := c.gen
	sessionID := c.store.SessionID()
	c.mu.Unlock()

	c.store.SetLoading(true)
	q, done, err := c.source.NextQuestion(ctx, sessionID)
	c.store.SetLoading(false)

	c.mu.Lock()
	c.fetching = false
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		return c.handleCallError("fetching next question", err)
	}
	if done {
		c.mu.Unlock()
		return c.Complete(ctx)
	}

	c.store.SetLastEvaluation(nil)
	c.store.SetDraft("")
	c.store.SetCurrentQuestion(q)
	c.store.SetProgress(q.Ordinal, c.store.TotalQuestions())
	c.store.ClearFailure()
	c.state = StateAwaitingAnswer
	c.mu.Unlock()

	c.logger.Debug("received question",
		zap.Int("ordinal", q.Ordinal),
		zap.Int("level", q.Level),
		zap.String("category", string(q.Category)),
	)

	return nil
}

// SubmitAnswer sends the answer to the evaluator. An empty answer is
// rejected locally. On transport failure the typed answer is preserved so
// the user does not lose work.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		err := &ValidationError{Field: "answer", Reason: "answer must not be empty"}
		c.store.SetFailure(err.Error())
		return err
	}
	if len(text) > MaxAnswerLength {
		err := &ValidationError{
			Field:  "answer",
			Reason: fmt.Sprintf("answer exceeds maximum length of %d characters", MaxAnswerLength),
		}
		c.store.SetFailure(err.Error())
		return err
	}

	c.mu.Lock()
	if c.state != StateAwaitingAnswer {
		c.mu.Unlock()
		return fmt.Errorf("submit: no question awaiting an answer (state %s)", c.state)
	}
	if c.submitting {
		c.mu.Unlock()
		return nil
	}
	question := c.store.CurrentQuestion()
	if question == nil {
		c.mu.Unlock()
		return fmt.Errorf("submit: no active question")
	}
	c.submitting = true
	c.state = StateEvaluating
	gen := c.gen
	sessionID := c.store.SessionID()
	c.mu.Unlock()

	c.store.SetDraft(text)
	c.store.SetLoading(true)
	result, err := c.eval.EvaluateAnswer(ctx, sessionID, text)
	c.store.SetLoading(false)

	c.mu.Lock()
	c.submitting = false
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateAwaitingAnswer
		c.mu.Unlock()
		return c.handleCallError("evaluating answer", err)
	}

	prev := c.store.CurrentLevel()
	next := ClampLevel(prev + result.Evaluation.LevelDelta)
	if result.NewLevel != 0 && ClampLevel(result.NewLevel) != next {
		c.logger.Warn("evaluator level disagrees with applied delta",
			zap.Int("reported", result.NewLevel),
			zap.Int("applied", next),
		)
	}

	c.store.AppendRecord(Record{
		Question:   *question,
		Answer:     text,
		Evaluation: result.Evaluation,
	})
	c.store.SetLevel(next)
	c.store.SetLastEvaluation(&result.Evaluation)
	c.store.ClearFailure()
	c.state = StateShowingFeedback

	delay := c.NextDelay
	complete := result.Complete
	if complete {
		delay = c.CompleteDelay
	}
	c.timer = armTimer(delay, func() {
		c.autoAdvance(gen, complete)
	})
	c.mu.Unlock()

	c.logger.Debug("answer evaluated",
		zap.Float64("score", result.Evaluation.OverallScore),
		zap.Int("level", next),
		zap.Bool("complete", complete),
	)

	return nil
}

// AutoAdvance returns a channel that is closed once the armed auto-advance
// transition has run (or was cancelled). Without an armed timer the channel
// is already closed.
func (c *Controller) AutoAdvance() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timer.Done()
}

// Complete transitions into summarizing and fetches the final summary
// exactly once. Repeated calls after success return the cached value
// without another network request; failures leave the session retriable.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateShowingFeedback && c.state != StateSummarizing && c.state != StateAwaitingAnswer {
		c.mu.Unlock()
		return fmt.Errorf("complete: unexpected state %s", c.state)
	}
	c.cancelTimerLocked()
	if c.store.Summary() != nil {
		c.state = StateComplete
		c.mu.Unlock()
		return nil
	}
	c.state = StateSummarizing
	gen := c.gen
	sessionID := c.store.SessionID()
	c.mu.Unlock()

	c.store.SetLoading(true)
	summary, err := c.source.Summary(ctx, sessionID)
	c.store.SetLoading(false)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		// Stay in summarizing: the session is not lost, the user may retry.
		c.mu.Unlock()
		return c.handleCallError("fetching summary", err)
	}

	c.store.SetSummary(summary)
	c.store.ClearFailure()
	c.state = StateComplete
	c.mu.Unlock()

	c.logger.Debug("session complete",
		zap.Float64("overall_score", summary.OverallScore),
		zap.Int("final_level", summary.FinalLevel),
	)

	return nil
}

// Reset returns to setup from any state. It wipes the store including the
// persisted snapshot, cancels any armed timer and invalidates in-flight
// call results via the generation counter.
func (c *Controller) Reset() error {
	c.mu.Lock()
	c.gen++
	c.cancelTimerLocked()
	c.fetching = false
	c.submitting = false
	c.state = StateSetup
	c.mu.Unlock()

	return c.store.Reset()
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

// autoAdvance is the deferred timer transition. The generation check makes
// a timer armed before a reset harmless.
func (c *Controller) autoAdvance(gen uint64, complete bool) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateShowingFeedback {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	var err error
	if complete {
		err = c.Complete(c.ctx)
	} else {
		err = c.FetchNext(c.ctx)
	}
	if err != nil {
		c.logger.Warn("auto-advance failed", zap.Error(err))
	}
}

// handleCallError applies the failure policy: session expiry routes back to
// setup with the snapshot cleared, everything else surfaces as a retryable
// failure in the pre-call state.
func (c *Controller) handleCallError(op string, err error) error {
	if errors.Is(err, ErrSessionExpired) {
		c.logger.Warn("backend no longer recognizes the session", zap.String("op", op))
		if resetErr := c.Reset(); resetErr != nil {
			c.logger.Warn("clearing expired session", zap.Error(resetErr))
		}
		c.store.SetFailure("the interview session expired, please start over")
		return ErrSessionExpired
	}

	c.store.SetFailure(err.Error())

	return fmt.Errorf("%s: %w", op, err)
}
