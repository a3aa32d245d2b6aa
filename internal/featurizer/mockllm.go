package featurizer

import (
	"context"
	"encoding/json"
)

// MockLLM answers tool calls with the configured feature values (false when
// absent) and plain completions with Content. It lets the pipeline run
// without external LLM access.
type MockLLM struct {
	Features map[string]bool
	Content  string
}

func (m *MockLLM) Completion(
	ctx context.Context,
	req CompletionRequest,
) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	if req.ForceTool == "" || len(req.Tools) == 0 {
		return CompletionResponse{Content: m.Content}, nil
	}
	args := map[string]bool{}
	if props, ok := req.Tools[0].Parameters["properties"].(map[string]any); ok {
		for k := range props {
			args[k] = m.Features[k]
		}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{
		ToolCalls: []ToolCall{{Name: req.ForceTool, Arguments: string(b)}},
	}, nil
}
