package featurizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const extractTool = "extract_features"

// Feature is a yes/no question the model answers about a text
type Feature struct {
	Identifier  string
	Description string
}

// FeatureEmbedding holds one answer set per sample
type FeatureEmbedding struct {
	Samples []map[string]bool
	Tokens  int
}

// Coefficient is the share of samples answering yes for id. The second
// result reports whether any sample answered at all.
func (e FeatureEmbedding) Coefficient(id string) (float64, bool) {
	var yes, n int
	for _, s := range e.Samples {
		v, ok := s[id]
		if !ok {
			continue
		}
		n++
		if v {
			yes++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(yes) / float64(n), true
}

// Featurizer asks an LLM to evaluate boolean features through a forced tool call
type Featurizer struct {
	SystemPrompt string
	Prompt       string
	Features     []Feature
	LLM          LLM
}

func (f Featurizer) tool() Tool {
	props := make(map[string]any, len(f.Features))
	required := make([]string, 0, len(f.Features))
	for _, ft := range f.Features {
		props[ft.Identifier] = map[string]any{"type": "boolean", "description": ft.Description}
		required = append(required, ft.Identifier)
	}
	return Tool{
		Name:        extractTool,
		Description: "Return boolean evaluations for defined features.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

func (f Featurizer) request(text, model string, temperature float64) CompletionRequest {
	user := text
	if f.Prompt != "" {
		user = f.Prompt + "\n\n" + text
	}
	var msgs []Message
	if f.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: f.SystemPrompt})
	}
	return CompletionRequest{
		Model:       model,
		Messages:    append(msgs, Message{Role: "user", Content: user}),
		Tools:       []Tool{f.tool()},
		ForceTool:   extractTool,
		Temperature: temperature,
	}
}

// Embed evaluates the features of text samples times; sampling above zero
// temperature smooths out single noisy answers.
func (f Featurizer) Embed(
	ctx context.Context,
	text, model string,
	temperature float64,
	samples int,
) (FeatureEmbedding, error) {
	if f.LLM == nil {
		return FeatureEmbedding{}, errors.New("featurizer has no LLM")
	}
	samples = max(samples, 1)
	req := f.request(text, model, temperature)

	out := FeatureEmbedding{Samples: make([]map[string]bool, 0, samples)}
	for range samples {
		resp, err := f.LLM.Completion(ctx, req)
		if err != nil {
			return FeatureEmbedding{}, err
		}
		answers, err := toolAnswers(resp)
		if err != nil {
			return FeatureEmbedding{}, err
		}
		out.Samples = append(out.Samples, answers)
		out.Tokens += resp.PromptTokens + resp.CompletionTokens
	}
	return out, nil
}

// toolAnswers decodes the forced tool call. Models sometimes answer with
// numbers or strings instead of booleans.
func toolAnswers(resp CompletionResponse) (map[string]bool, error) {
	if len(resp.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool call in response")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &raw); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	m := make(map[string]bool, len(raw))
	for k, v := range raw {
		switch vv := v.(type) {
		case bool:
			m[k] = vv
		case float64:
			m[k] = vv != 0
		case string:
			m[k] = vv == "true" || vv == "yes"
		}
	}
	return m, nil
}
