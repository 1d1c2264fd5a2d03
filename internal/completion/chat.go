package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/qualm/internal/confidence"
	"github.com/tidwall/gjson"
)

// ChatClient talks to the chat completions endpoint, which reports
// candidates as logprobs.content[].top_logprobs, a list of
// {token, logprob} objects per generated position.
type ChatClient struct {
	client
}

func NewChatClient(cfg Config, logger *slog.Logger) *ChatClient {
	return &ChatClient{client: newClient(cfg, logger)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Logprobs    bool          `json:"logprobs"`
	TopLogprobs int           `json:"top_logprobs"`
}

func (c *ChatClient) Complete(ctx context.Context, req Request) (confidence.Completion, error) {
	req = req.withDefaults()
	req.TopLogprobs = min(req.TopLogprobs, 20)

	c.logger.Debug("requesting chat completion", "model", req.Model, "max-tokens", req.MaxTokens, "temperature", req.Temperature, "top-logprobs", req.TopLogprobs)

	data, err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Logprobs:    true,
		TopLogprobs: req.TopLogprobs,
	})
	if err != nil {
		return confidence.Completion{}, err
	}
	return parseChat(data)
}

func parseChat(data []byte) (confidence.Completion, error) {
	choice := gjson.GetBytes(data, "choices.0")
	if !choice.Exists() {
		return confidence.Completion{}, ErrEmptyCompletion
	}

	c := confidence.Completion{
		Text:      strings.TrimSpace(choice.Get("message.content").String()),
		Positions: []confidence.Position{},
	}
	for _, content := range choice.Get("logprobs.content").Array() {
		p := confidence.Position{}
		for _, cand := range content.Get("top_logprobs").Array() {
			p[cand.Get("token").String()] = cand.Get("logprob").Float()
		}
		c.Positions = append(c.Positions, p)
	}
	return c, nil
}

func (c *ChatClient) String() string {
	return fmt.Sprintf("chat(%s)", c.cfg.BaseURL)
}
