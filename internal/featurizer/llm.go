package featurizer

import (
	"context"
	"time"
)

// LLMConfig contains provider configuration
type LLMConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// LLM abstracts a chat completion API that can be forced to call a tool
type LLM interface {
	Completion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Tool is a function the model may call; Parameters is a JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest holds chat inputs. ForceTool names the tool the model
// must call; it is empty for plain completions.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	ForceTool   string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the first choice of a completion.
type CompletionResponse struct {
	Content          string
	ToolCalls        []ToolCall
	PromptTokens     int
	CompletionTokens int
}

type ToolCall struct {
	Name      string
	Arguments string // raw JSON
}
