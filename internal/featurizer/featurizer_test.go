package featurizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/0x5457/fs-index/internal/featurizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	requests []featurizer.CompletionRequest
}

func (f *fakeLLM) Completion(
	ctx context.Context,
	req featurizer.CompletionRequest,
) (featurizer.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	// answer every feature with 1 to exercise the lenient decoding
	args := map[string]int{}
	if props, ok := req.Tools[0].Parameters["properties"].(map[string]any); ok {
		for k := range props {
			args[k] = 1
		}
	}
	b, _ := json.Marshal(args)
	return featurizer.CompletionResponse{
		ToolCalls:        []featurizer.ToolCall{{Name: req.ForceTool, Arguments: string(b)}},
		PromptTokens:     10,
		CompletionTokens: 5,
	}, nil
}

func Test_Featurizer_Embed(t *testing.T) {
	llm := &fakeLLM{}
	f := featurizer.Featurizer{
		SystemPrompt: "you are a feature extractor",
		Prompt:       "please analyze",
		Features: []featurizer.Feature{
			{Identifier: "mentions_photo", Description: "query mentions a photo"},
			{Identifier: "mentions_code", Description: "query mentions source code"},
		},
		LLM: llm,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emb, err := f.Embed(ctx, "beach photos", "fake", 0.7, 3)
	require.NoError(t, err)
	assert.Len(t, emb.Samples, 3)
	assert.Equal(t, 45, emb.Tokens)

	coef, ok := emb.Coefficient("mentions_photo")
	assert.True(t, ok)
	assert.Equal(t, 1.0, coef)
	_, ok = emb.Coefficient("unknown")
	assert.False(t, ok)

	require.Len(t, llm.requests, 3)
	req := llm.requests[0]
	assert.Equal(t, "fake", req.Model)
	require.Len(t, req.Messages, 2)
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "please analyze\n\nbeach photos"))
	assert.Equal(t, "extract_features", req.ForceTool)
}

func Test_Featurizer_NoLLM(t *testing.T) {
	_, err := featurizer.Featurizer{}.Embed(context.Background(), "x", "m", 0, 1)
	assert.Error(t, err)
}

func Test_Featurizer_NoToolCall(t *testing.T) {
	f := featurizer.NewImageIntent(&recordingLLM{})
	_, err := f.Embed(context.Background(), "x", "m", 0, 1)
	assert.Error(t, err)
}

func Test_ImageIntent_WithMock(t *testing.T) {
	mock := &featurizer.MockLLM{Features: map[string]bool{featurizer.FeatureLookingForImage: true}}
	f := featurizer.NewImageIntent(mock)

	emb, err := f.Embed(context.Background(), "pictures of my dog", "", 0, 1)
	require.NoError(t, err)
	coef, ok := emb.Coefficient(featurizer.FeatureLookingForImage)
	assert.True(t, ok)
	assert.Equal(t, 1.0, coef)

	mock.Features = nil
	emb, err = f.Embed(context.Background(), "tax return 2023", "", 0, 1)
	require.NoError(t, err)
	coef, _ = emb.Coefficient(featurizer.FeatureLookingForImage)
	assert.Equal(t, 0.0, coef)
}

func Test_GeneralizeImageQuery(t *testing.T) {
	mock := &featurizer.MockLLM{Content: "  A dog playing in the snow \n"}
	out, err := featurizer.GeneralizeImageQuery(context.Background(), mock, "m", "rex in aspen")
	require.NoError(t, err)
	assert.Equal(t, "A dog playing in the snow", out)
}

func Test_Complete_Empty(t *testing.T) {
	_, err := featurizer.Complete(context.Background(), &featurizer.MockLLM{}, "m", "", "hi", 0)
	assert.Error(t, err)
}

type recordingLLM struct {
	prompt string
	err    error
}

func (r *recordingLLM) Completion(
	_ context.Context,
	req featurizer.CompletionRequest,
) (featurizer.CompletionResponse, error) {
	if r.err != nil {
		return featurizer.CompletionResponse{}, r.err
	}
	r.prompt = req.Messages[len(req.Messages)-1].Content
	return featurizer.CompletionResponse{Content: "Adds numbers."}, nil
}

func Test_Summarizer(t *testing.T) {
	llm := &recordingLLM{}
	s := &featurizer.Summarizer{LLM: llm, Model: "m", MaxInputChars: 10}

	out, err := s.SummarizeCode(context.Background(), "Go source code", "func add(a, b int) int { return a + b }")
	require.NoError(t, err)
	assert.Equal(t, "Adds numbers.", out)
	assert.Contains(t, llm.prompt, "Go source code")
	assert.Contains(t, llm.prompt, "func add(a")
	assert.NotContains(t, llm.prompt, "return a + b")

	llm.err = errors.New("down")
	_, err = s.SummarizeCode(context.Background(), "", "x")
	assert.Error(t, err)
}
