package featurizer

import (
	"context"
	"errors"
	"strings"
)

// Complete runs a plain chat completion and returns the trimmed answer.
func Complete(ctx context.Context, llm LLM, model, system, prompt string, temperature float64) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	resp, err := llm.Completion(ctx, CompletionRequest{
		Model:       model,
		Messages:    append(msgs, Message{Role: "user", Content: prompt}),
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", errors.New("empty completion")
	}
	return out, nil
}
