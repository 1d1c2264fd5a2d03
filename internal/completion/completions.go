package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/qualm/internal/confidence"
	"github.com/tidwall/gjson"
)

// CompletionsClient talks to the legacy text completions endpoint, which
// reports candidates as logprobs.top_logprobs, one {token: logprob} object
// per generated position.
type CompletionsClient struct {
	client
}

func NewCompletionsClient(cfg Config, logger *slog.Logger) *CompletionsClient {
	return &CompletionsClient{client: newClient(cfg, logger)}
}

type completionsRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Logprobs    int     `json:"logprobs"`
	Echo        bool    `json:"echo"`
}

func (c *CompletionsClient) Complete(ctx context.Context, req Request) (confidence.Completion, error) {
	req = req.withDefaults()
	// the endpoint caps logprobs at 5
	req.TopLogprobs = min(req.TopLogprobs, 5)

	c.logger.Debug("requesting completion", "model", req.Model, "max-tokens", req.MaxTokens, "temperature", req.Temperature, "logprobs", req.TopLogprobs)

	data, err := c.post(ctx, "/completions", completionsRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Logprobs:    req.TopLogprobs,
		Echo:        false,
	})
	if err != nil {
		return confidence.Completion{}, err
	}
	return parseCompletions(data)
}

func parseCompletions(data []byte) (confidence.Completion, error) {
	choice := gjson.GetBytes(data, "choices.0")
	if !choice.Exists() {
		return confidence.Completion{}, ErrEmptyCompletion
	}

	c := confidence.Completion{
		Text: strings.TrimSpace(choice.Get("text").String()),
	}
	for _, pos := range choice.Get("logprobs.top_logprobs").Array() {
		c.Positions = append(c.Positions, positionOf(pos))
	}
	if c.Positions == nil {
		c.Positions = []confidence.Position{}
	}
	return c, nil
}

// String is used in log lines.
func (c *CompletionsClient) String() string {
	return fmt.Sprintf("completions(%s)", c.cfg.BaseURL)
}
