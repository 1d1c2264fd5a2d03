package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/modfin/qualm/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const completionsBody = `{
  "choices": [{
    "text": " Paris is the capital.",
    "logprobs": {
      "top_logprobs": [
        {" Paris": -0.1, " The": -2.4},
        {" is": -0.05},
        {" the": -0.02},
        {" capital.": -0.3}
      ]
    }
  }]
}`

func TestAsk_FlagsReachTheRequest(t *testing.T) {
	var payload []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ = io.ReadAll(r.Body)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completionsBody))
	}))
	t.Cleanup(srv.Close)

	dbPath := filepath.Join(t.TempDir(), "qualm.db")
	err := app().Run(context.Background(), []string{"qualm",
		"--db", dbPath,
		"--session", "flags",
		"--openai-url", srv.URL,
		"--openai-key", "sk-test",
		"--max-tokens", "42",
		"--top-logprobs", "3",
		"--view", "none",
		"ask", "What is the capital of France?",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), gjson.GetBytes(payload, "max_tokens").Int())
	assert.Equal(t, int64(3), gjson.GetBytes(payload, "logprobs").Int())
	assert.Equal(t, "What is the capital of France?", gjson.GetBytes(payload, "prompt").String())

	conn, q, err := db.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer conn.Close()

	entries, err := q.ListEntries(context.Background(), "flags", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Paris is the capital.", entries[0].Response)
	assert.Len(t, entries[0].TokenConfidences, 4)
}

func TestAsk_NoCredentials(t *testing.T) {
	t.Setenv("QUALM_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	dbPath := filepath.Join(t.TempDir(), "qualm.db")
	err := app().Run(context.Background(), []string{"qualm", "--db", dbPath, "ask", "anything"})
	assert.Error(t, err)
}

func TestBands_InvalidTable(t *testing.T) {
	err := app().Run(context.Background(), []string{"qualm", "--band", "90:High", "--band", "60:Moderate", "bands"})
	assert.Error(t, err)
}
