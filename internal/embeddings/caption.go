package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HuggingFaceCaptioner posts raw image bytes to an image-to-text inference
// endpoint and reads back [{"generated_text": "..."}].
type HuggingFaceCaptioner struct {
	url    string
	token  string
	client *http.Client
}

func NewHuggingFace(url, token string) *HuggingFaceCaptioner {
	return &HuggingFaceCaptioner{url: url, token: token, client: &http.Client{}}
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

func (c *HuggingFaceCaptioner) Caption(ctx context.Context, image []byte, mime string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if mime != "" {
		req.Header.Set("Content-Type", mime)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return "", statusError("caption api", resp)
	}
	var out []generatedText
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode caption response: %w", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return "", errors.New("caption api returned no text")
	}
	return strings.TrimSpace(out[0].GeneratedText), nil
}
