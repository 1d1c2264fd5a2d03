package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/modfin/qualm/internal/confidence"
	"github.com/tidwall/gjson"
)

// Config holds the connection settings of an OpenAI compatible service.
type Config struct {
	BaseURL string `cli:"openai-url"`
	APIKey  string `cli:"openai-key"`
	API     string `cli:"api"`
}

const DefaultBaseURL = "https://api.openai.com/v1"

// New returns the client for cfg.API, "completions" (the default) or "chat".
func New(cfg Config, logger *slog.Logger) (Source, error) {
	switch strings.ToLower(cfg.API) {
	case "", "completions":
		return NewCompletionsClient(cfg, logger), nil
	case "chat":
		return NewChatClient(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown api '%s', expected completions or chat", cfg.API)
}

type client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func newClient(cfg Config, logger *slog.Logger) client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// post sends payload to path and returns the body of a 2xx response. Every
// failure, transport or status, is wrapped in ErrUpstream.
func (c client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoCredentials
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUpstream, err)
	}
	c.logger.Debug("completion request", "url", url, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = excerpt(string(data), 200)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}
	if e := gjson.GetBytes(data, "error.message"); e.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, e.String())
	}
	return data, nil
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// positionOf reads one {token: logprob} object. A null entry yields an empty
// position.
func positionOf(obj gjson.Result) confidence.Position {
	p := confidence.Position{}
	if !obj.IsObject() {
		return p
	}
	obj.ForEach(func(token, lp gjson.Result) bool {
		p[token.String()] = lp.Float()
		return true
	})
	return p
}
