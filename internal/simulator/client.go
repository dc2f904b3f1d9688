// Package simulator is the HTTP client for the external adaptive interview
// simulator API. It implements the session collaborator interfaces and
// normalizes the loosely-shaped wire responses into canonical types.
package simulator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spigell/interview-trainer/internal/session"

	"go.uber.org/zap"
)

const (
	defaultAPIURL = "http://localhost:8000"
	userAgent     = "interview-trainer"

	startPath   = "/start_interview"
	nextPath    = "/next_question"
	submitPath  = "/submit_answer"
	summaryPath = "/summary"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		APIURL: defaultAPIURL,
		HTTPClient: &http.Client{
			// Question generation and evaluation can take a while on the
			// backend side, so the timeout is generous.
			Timeout: 90 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// StartInterview creates a new backend session. The settings in the
// response are authoritative.
func (c *Client) StartInterview(ctx context.Context, settings session.Settings) (*session.Started, error) {
	var raw map[string]any
	err := c.postJSON(ctx, c.APIURL+startPath, settings, &raw)
	if err != nil {
		return nil, err
	}

	started, err := normalizeStarted(raw)
	if err != nil {
		return nil, fmt.Errorf("start response: %w", err)
	}
	if started.Settings.NumQuestions == 0 {
		// Backend omitted the echo, fall back to what was requested.
		started.Settings = settings
	}

	c.logger.Debug("backend session created",
		zap.String("session_id", started.SessionID),
		zap.Int("level", started.CurrentLevel),
	)

	return started, nil
}

// NextQuestion fetches the next question for the session. done reports that
// the backend has no further questions.
func (c *Client) NextQuestion(ctx context.Context, sessionID string) (*session.Question, bool, error) {
	q := url.Values{}
	q.Set("interview_id", sessionID)

	var raw map[string]any
	err := c.getJSON(ctx, c.APIURL+nextPath, q, &raw)
	if err != nil {
		if isExhausted(err) {
			return nil, true, nil
		}
		return nil, false, err
	}

	question, warnings, err := normalizeQuestion(raw)
	if err != nil {
		return nil, false, fmt.Errorf("question response: %w", err)
	}
	c.logIntegrity("next_question", warnings)

	return question, false, nil
}

// EvaluateAnswer submits the answer for the current question.
func (c *Client) EvaluateAnswer(ctx context.Context, sessionID, answer string) (*session.SubmitResult, error) {
	payload := map[string]any{
		"interview_id": sessionID,
		"answer":       answer,
	}

	var raw map[string]any
	if err := c.postJSON(ctx, c.APIURL+submitPath, payload, &raw); err != nil {
		return nil, err
	}

	result, warnings, err := normalizeSubmitResult(raw)
	if err != nil {
		return nil, fmt.Errorf("evaluation response: %w", err)
	}
	c.logIntegrity("submit_answer", warnings)

	return result, nil
}

// Summary fetches the final aggregate for a completed session.
func (c *Client) Summary(ctx context.Context, sessionID string) (*session.Summary, error) {
	var raw map[string]any
	endpoint := fmt.Sprintf("%s%s/%s", c.APIURL, summaryPath, url.PathEscape(sessionID))
	if err := c.getJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, err
	}

	summary, warnings, err := normalizeSummary(raw)
	if err != nil {
		return nil, fmt.Errorf("summary response: %w", err)
	}
	c.logIntegrity("summary", warnings)

	return summary, nil
}

func (c *Client) logIntegrity(op string, warnings []*session.IntegrityError) {
	for _, w := range warnings {
		c.logger.Warn("response violates an invariant, value contained",
			zap.String("op", op),
			zap.String("field", w.Field),
			zap.String("reason", w.Reason),
		)
	}
}
