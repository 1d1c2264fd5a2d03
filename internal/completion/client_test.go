package completion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/modfin/qualm/internal/confidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const completionsBody = `{
  "id": "cmpl-1",
  "object": "text_completion",
  "model": "gpt-3.5-turbo-instruct",
  "choices": [{
    "text": "\n\nParis is the capital.",
    "index": 0,
    "logprobs": {
      "tokens": ["\n\n", "Paris", " is", " the", " capital", "."],
      "top_logprobs": [
        {"\n\n": -0.01, "\n": -4.7},
        {"Paris": -0.1, "The": -2.4},
        {" is": -0.05},
        null,
        {" capital": -0.2, " city": -1.8},
        {".": -0.001}
      ]
    },
    "finish_reason": "stop"
  }]
}`

const chatBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "Paris."},
    "logprobs": {
      "content": [
        {"token": "Paris", "logprob": -0.1, "top_logprobs": [
          {"token": "Paris", "logprob": -0.1},
          {"token": "The", "logprob": -2.5}
        ]},
        {"token": ".", "logprob": -0.3, "top_logprobs": [
          {"token": ".", "logprob": -0.3},
          {"token": "!", "logprob": -1.4}
        ]}
      ]
    },
    "finish_reason": "stop"
  }]
}`

func serve(t *testing.T, status int, body string, check func(r *http.Request, payload []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if check != nil {
			check(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompletionsClient(t *testing.T) {
	srv := serve(t, http.StatusOK, completionsBody, func(r *http.Request, payload []byte) {
		assert.Equal(t, "/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "What is the capital of France?", gjson.GetBytes(payload, "prompt").String())
		assert.Equal(t, "gpt-3.5-turbo-instruct", gjson.GetBytes(payload, "model").String())
		assert.Equal(t, int64(150), gjson.GetBytes(payload, "max_tokens").Int())
		assert.Equal(t, 0.7, gjson.GetBytes(payload, "temperature").Float())
		assert.Equal(t, int64(5), gjson.GetBytes(payload, "logprobs").Int())
		assert.False(t, gjson.GetBytes(payload, "echo").Bool())
	})

	c := NewCompletionsClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	got, err := c.Complete(context.Background(), Request{
		Prompt:      "What is the capital of France?",
		Temperature: 0.7,
		TopLogprobs: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", got.Text)
	require.Len(t, got.Positions, 6)
	assert.Equal(t, confidence.Position{"Paris": -0.1, "The": -2.4}, got.Positions[1])
	assert.Empty(t, got.Positions[3])

	confs, _ := confidence.TokenConfidences(got.Positions)
	assert.Len(t, confs, 5)
}

func TestChatClient(t *testing.T) {
	srv := serve(t, http.StatusOK, chatBody, func(r *http.Request, payload []byte) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.True(t, gjson.GetBytes(payload, "logprobs").Bool())
		assert.Equal(t, int64(3), gjson.GetBytes(payload, "top_logprobs").Int())
		assert.Equal(t, "user", gjson.GetBytes(payload, "messages.0.role").String())
		assert.Equal(t, "Capital?", gjson.GetBytes(payload, "messages.0.content").String())
	})

	c := NewChatClient(Config{BaseURL: srv.URL + "/", APIKey: "sk-test"}, nil)
	got, err := c.Complete(context.Background(), Request{Prompt: "Capital?", Model: "gpt-4o-mini", TopLogprobs: 3})
	require.NoError(t, err)

	assert.Equal(t, "Paris.", got.Text)
	require.Len(t, got.Positions, 2)
	assert.Equal(t, confidence.Position{".": -0.3, "!": -1.4}, got.Positions[1])
}

func TestClient_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`,
			want:   "Incorrect API key provided",
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "Rate limit reached"}}`,
			want:   "status 429",
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `upstream timed out`,
			want:   "upstream timed out",
		},
		{
			name:   "error in a 200",
			status: http.StatusOK,
			body:   `{"error": {"message": "model overloaded"}}`,
			want:   "model overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, nil)
			c := NewCompletionsClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

			got, err := c.Complete(context.Background(), Request{Prompt: "hi"})
			require.ErrorIs(t, err, ErrUpstream)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, got.Text)
			assert.Nil(t, got.Positions)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewChatClient(Config{BaseURL: url, APIKey: "sk-test"}, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestClient_NoCredentials(t *testing.T) {
	called := false
	srv := serve(t, http.StatusOK, completionsBody, func(*http.Request, []byte) { called = true })

	c := NewCompletionsClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.False(t, called)
}

func TestClient_NoChoices(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"choices": []}`, nil)

	c := NewCompletionsClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNew(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CompletionsClient{}, s)

	s, err = New(Config{API: "Chat"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChatClient{}, s)

	_, err = New(Config{API: "embeddings"}, nil)
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name      string
		body      string
		text      string
		positions int
	}{
		{
			name:      "plain",
			body:      `{"text": "It is in France.", "positions": [{"It": -0.2}, {}, {" is": -0.1}]}`,
			text:      "It is in France.",
			positions: 3,
		},
		{
			name:      "plain without positions",
			body:      `{"text": "Nothing."}`,
			text:      "Nothing.",
			positions: 0,
		},
		{
			name:      "completions response",
			body:      completionsBody,
			text:      "Paris is the capital.",
			positions: 6,
		},
		{
			name:      "chat response",
			body:      chatBody,
			text:      "Paris.",
			positions: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(write(tt.name+".json", tt.body))
			got, err := src.Complete(context.Background(), Request{})
			require.NoError(t, err)
			assert.Equal(t, tt.text, got.Text)
			assert.Len(t, got.Positions, tt.positions)
			assert.NotNil(t, got.Positions)
		})
	}

	_, err := NewFileSource(write("broken.json", `{"text": `)).Complete(context.Background(), Request{})
	assert.Error(t, err)

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestParse_NullPositionIsSkipped(t *testing.T) {
	got, err := Parse([]byte(`{"choices":[{"text":"Hi there","logprobs":{"top_logprobs":[{"Hi":-0.7},null]}}]}`))
	require.NoError(t, err)

	require.Len(t, got.Positions, 2)
	assert.Empty(t, got.Positions[1])

	confs, overall := confidence.TokenConfidences(got.Positions)
	require.Len(t, confs, 1)
	assert.InDelta(t, 49.66, overall, 0.01)
}
