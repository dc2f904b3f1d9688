package simulator

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spigell/interview-trainer/internal/session"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// errNoMoreQuestions marks the backend completion signal carried in a
// not-found response body.
var errNoMoreQuestions = errors.New("no more questions available")

func isExhausted(err error) bool {
	return errors.Is(err, errNoMoreQuestions)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, target *map[string]any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, target *map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target *map[string]any) error {
	c.logger.Debug("make request", zap.String("url", req.URL.String()), zap.String("method", req.Method))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &session.TransportError{Op: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return &session.TransportError{Op: req.URL.Path, Err: err}
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return &session.TransportError{Op: req.URL.Path, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.mapStatusError(req, resp.StatusCode, data)
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
	}

	return nil
}

// mapStatusError translates backend failures into the session error
// taxonomy. A not-found on next_question is ambiguous in the backend: the
// body detail tells an exhausted session apart from an unknown one.
func (c *Client) mapStatusError(req *http.Request, status int, body []byte) error {
	detail := errorDetail(body)

	switch status {
	case http.StatusNotFound, http.StatusGone:
		if strings.Contains(strings.ToLower(detail), "no more questions") {
			return errNoMoreQuestions
		}
		return session.ErrSessionExpired
	case http.StatusUnauthorized, http.StatusForbidden:
		return session.ErrSessionExpired
	default:
		err := fmt.Errorf("bad status: %s", http.StatusText(status))
		if detail != "" {
			err = fmt.Errorf("bad status %d: %s", status, detail)
		}
		return &session.TransportError{Op: req.URL.Path, Err: err}
	}
}

func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}

	return strings.TrimSpace(parsed.Detail)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)

	return req
}
