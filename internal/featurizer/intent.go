package featurizer

import (
	"context"
	"fmt"
)

const FeatureLookingForImage = "looking_for_image"

const (
	intentSystemPrompt = "You classify file search queries. Answer only through the provided tool."
	intentPrompt       = "Decide whether the following query, typed into a search box over a " +
		"personal file system, is looking for an image."
)

// NewImageIntent returns a featurizer deciding whether a search query is
// looking for a picture rather than a document or source file.
func NewImageIntent(llm LLM) Featurizer {
	return Featurizer{
		SystemPrompt: intentSystemPrompt,
		Prompt:       intentPrompt,
		Features: []Feature{{
			Identifier:  FeatureLookingForImage,
			Description: "The query is looking for a picture, photo, screenshot or other image file.",
		}},
		LLM: llm,
	}
}

const generalizePrompt = `The following search query may be looking for an image. Rewrite it as a short, generic caption of the image it describes, the way an automatic image captioner would phrase it. Replace names and specific places with generic nouns.

Example: "photos of me and my wife in Hawaii" -> "A man and a woman standing on a beach"

Query: %s
Caption:`

// GeneralizeImageQuery rewrites an image query into caption style.
func GeneralizeImageQuery(ctx context.Context, llm LLM, model, query string) (string, error) {
	return Complete(ctx, llm, model, "", fmt.Sprintf(generalizePrompt, query), 0)
}

const summarizePrompt = "Summarize the purpose of the following %s in at most three sentences:\n```\n%s\n```"

// Summarizer produces short natural-language descriptions of source files.
type Summarizer struct {
	LLM LLM
	// Model is passed through to the LLM
	Model string
	// MaxInputChars bounds the code sent to the model; zero means no bound
	MaxInputChars int
}

func (s *Summarizer) SummarizeCode(ctx context.Context, language, code string) (string, error) {
	if s.MaxInputChars > 0 && len(code) > s.MaxInputChars {
		code = code[:s.MaxInputChars]
	}
	if language == "" {
		language = "code"
	}
	return Complete(ctx, s.LLM, s.Model, "", fmt.Sprintf(summarizePrompt, language, code), 0)
}
