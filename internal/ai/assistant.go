// Package ai implements the question source and evaluator contract locally,
// on top of a pluggable content generator. It lets a session run fully
// offline from the backend, with the model doing question generation and
// answer scoring.
package ai

import (
	"context"
)

// ContentGenerator produces a model response for a prompt. Implemented by
// the gemini subpackage; tests plug in fakes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
