package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// Captioner turns an image into a short natural-language description.
type Captioner interface {
	Caption(ctx context.Context, image []byte, mime string) (string, error)
}

var (
	// ErrServiceFailure matches every error returned once the embedding or
	// captioning service could not produce a result.
	ErrServiceFailure = errors.New("embedding service failure")
	ErrNoCaptioner    = errors.New("no captioning service configured")
)

type ServiceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() []error { return []error{ErrServiceFailure, e.Err} }

// StatusError is returned when a remote service answers with a non-2xx status.
type StatusError struct {
	Service    string
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Service, e.Status)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func statusError(service string, resp *http.Response) *StatusError {
	se := &StatusError{Service: service, Code: resp.StatusCode, Status: resp.Status}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}
