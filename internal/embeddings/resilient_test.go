package embeddings

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEmbedder struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyEmbedder) ModelName() string { return "flaky" }

func (f *flakyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type slowEmbedder struct{ flakyEmbedder }

func (s *slowEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestResilient(e Embedder, c Captioner, attempts int) (*Resilient, *[]time.Duration) {
	r := NewResilient(e, c, RetryPolicy{
		Timeout:     50 * time.Millisecond,
		MaxAttempts: attempts,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    40 * time.Millisecond,
	}, nil, nil)
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return r, &delays
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 2,
		err:      &StatusError{Service: "test", Code: http.StatusServiceUnavailable, Status: "503"},
	}
	r, delays := newTestResilient(inner, nil, 4)

	vecs, err := r.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *delays)
}

func TestResilientGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 100,
		err:      &StatusError{Service: "test", Code: http.StatusTooManyRequests, Status: "429"},
	}
	r, delays := newTestResilient(inner, nil, 5)

	_, err := r.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceFailure)

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Attempts)
	assert.Equal(t, int32(5), inner.calls.Load())
	// bounded: 10, 20, 40, 40
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond,
	}, *delays)
}

func TestResilientDoesNotRetryPermanentFailures(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 100,
		err:      &StatusError{Service: "test", Code: http.StatusBadRequest, Status: "400"},
	}
	r, _ := newTestResilient(inner, nil, 4)

	_, err := r.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestResilientHonorsRetryAfter(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 1,
		err: &StatusError{
			Service: "test", Code: http.StatusTooManyRequests, Status: "429",
			RetryAfter: 30 * time.Millisecond,
		},
	}
	r, delays := newTestResilient(inner, nil, 3)

	_, err := r.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Millisecond}, *delays)
}

func TestResilientPerCallTimeout(t *testing.T) {
	inner := &slowEmbedder{}
	r, _ := newTestResilient(inner, nil, 2)

	start := time.Now()
	_, err := r.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResilientStopsWhenCallerCancels(t *testing.T) {
	inner := &flakyEmbedder{failures: 100, err: errors.New("boom")}
	r, _ := newTestResilient(inner, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.EmbedTexts(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestResilientRejectsMalformedResponses(t *testing.T) {
	r, _ := newTestResilient(embedderFunc(func(texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}), nil, 3)

	_, err := r.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrServiceFailure)
}

func TestResilientWithoutCaptioner(t *testing.T) {
	r, _ := newTestResilient(NewLocal(4), nil, 3)
	assert.False(t, r.HasCaptioner())

	_, err := r.Caption(context.Background(), []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.ErrorIs(t, err, ErrNoCaptioner)
}

type embedderFunc func(texts []string) ([][]float32, error)

func (f embedderFunc) ModelName() string { return "func" }

func (f embedderFunc) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return f(texts)
}

func (f embedderFunc) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vecs, err := f([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
