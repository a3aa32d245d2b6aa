package featurizerfx

import (
	"testing"

	"github.com/0x5457/fs-index/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLLMDisabled(t *testing.T) {
	cfg := config.Default()
	res := NewLLM(cfg)
	assert.Nil(t, res.LLM)
	assert.Nil(t, res.Summarizer)
	assert.Nil(t, res.Intent)
}

func TestNewLLMOpenAI(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.SummarizeCode = true

	res := NewLLM(cfg)
	assert.NotNil(t, res.LLM)
	if assert.NotNil(t, res.Summarizer) {
		assert.Equal(t, cfg.LLM.Model, res.Summarizer.Model)
	}
	assert.Nil(t, res.Intent)

	cfg.LLM.GuidedSearch = true
	res = NewLLM(cfg)
	assert.NotNil(t, res.Intent)
}
