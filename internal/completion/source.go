package completion

import (
	"context"
	"errors"

	"github.com/modfin/qualm/internal/confidence"
)

var ErrUpstream = errors.New("completion service failed")
var ErrNoCredentials = errors.New("API key not configured")
var ErrEmptyCompletion = errors.New("completion service returned no choices")

// Request is one prompt and its generation parameters.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
	// TopLogprobs is the number of candidates to return per position.
	TopLogprobs int
}

// Source produces a completion and its log-probability table for a prompt.
// A failing Source returns an error and no completion; callers must not
// score anything in that case.
type Source interface {
	Complete(ctx context.Context, req Request) (confidence.Completion, error)
}

// Defaults are the generation parameters used when a request leaves them
// unset.
var Defaults = Request{
	Model:       "gpt-3.5-turbo-instruct",
	MaxTokens:   150,
	Temperature: 0.7,
	TopLogprobs: 5,
}

func (r Request) withDefaults() Request {
	if r.Model == "" {
		r.Model = Defaults.Model
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = Defaults.MaxTokens
	}
	if r.TopLogprobs <= 0 {
		r.TopLogprobs = Defaults.TopLogprobs
	}
	return r
}
