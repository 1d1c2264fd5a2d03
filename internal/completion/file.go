package completion

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/modfin/qualm/internal/confidence"
	"github.com/tidwall/gjson"
)

// FileSource replays a completion saved on disk. The file holds either
// {"text": ..., "positions": [{token: logprob}, ...]} or a raw response
// body from the completions or chat completions endpoint. The prompt of the
// request is ignored.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Complete(_ context.Context, _ Request) (confidence.Completion, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return confidence.Completion{}, fmt.Errorf("failed to read completion file %s: %w", f.Path, err)
	}
	return Parse(data)
}

// Parse decodes a saved completion in any of the formats FileSource accepts.
func Parse(data []byte) (confidence.Completion, error) {
	if !gjson.ValidBytes(data) {
		return confidence.Completion{}, fmt.Errorf("completion is not valid JSON")
	}

	switch {
	case gjson.GetBytes(data, "choices.0.message").Exists():
		return parseChat(data)
	case gjson.GetBytes(data, "choices").Exists():
		return parseCompletions(data)
	}

	var c confidence.Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return confidence.Completion{}, fmt.Errorf("failed to unmarshal completion: %w", err)
	}
	if c.Positions == nil {
		c.Positions = []confidence.Position{}
	}
	return c, nil
}
