package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/0x5457/fs-index/internal/metrics"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type RetryPolicy struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	return p
}

// delay is the backoff before attempt+1: base << attempt, capped.
func (p RetryPolicy) delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return min(hint, p.MaxDelay)
	}
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Resilient wraps an Embedder and an optional Captioner with per-call
// timeouts and bounded retries. Every failure it returns is a *ServiceError.
type Resilient struct {
	embedder  Embedder
	captioner Captioner
	policy    RetryPolicy
	log       *zap.Logger
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewResilient(
	e Embedder,
	c Captioner,
	policy RetryPolicy,
	log *zap.Logger,
	m *metrics.Metrics,
) *Resilient {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resilient{
		embedder:  e,
		captioner: c,
		policy:    policy.withDefaults(),
		log:       log,
		metrics:   m,
		sleep:     sleepContext,
	}
}

func (r *Resilient) ModelName() string { return r.embedder.ModelName() }

// HasCaptioner reports whether images can be captioned.
func (r *Resilient) HasCaptioner() bool { return r.captioner != nil }

func (r *Resilient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		vecs, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if err := checkVectors(vecs, len(texts)); err != nil {
			return err
		}
		out = vecs
		return nil
	})
	return out, err
}

func (r *Resilient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "embed_query", func(ctx context.Context) error {
		vec, err := r.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		if err := checkVectors([][]float32{vec}, 1); err != nil {
			return err
		}
		out = vec
		return nil
	})
	return out, err
}

func (r *Resilient) Caption(ctx context.Context, image []byte, mime string) (string, error) {
	if r.captioner == nil {
		return "", &ServiceError{Op: "caption", Err: ErrNoCaptioner}
	}
	var out string
	err := r.do(ctx, "caption", func(ctx context.Context) error {
		caption, err := r.captioner.Caption(ctx, image, mime)
		if err != nil {
			return err
		}
		out = caption
		return nil
	})
	return out, err
}

func (r *Resilient) do(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			r.metrics.EmbedRetry()
			if err := r.sleep(ctx, r.policy.delay(attempt-1, retryAfter(lastErr))); err != nil {
				r.metrics.EmbedCall(op, "error")
				return &ServiceError{Op: op, Attempts: attempt, Err: lastErr}
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		err := call(attemptCtx)
		cancel()
		if err == nil {
			r.metrics.EmbedCall(op, "ok")
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) {
			r.metrics.EmbedCall(op, "error")
			return &ServiceError{Op: op, Attempts: attempt + 1, Err: err}
		}
		r.log.Debug("retrying service call",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	r.metrics.EmbedCall(op, "error")
	return &ServiceError{Op: op, Attempts: r.policy.MaxAttempts, Err: lastErr}
}

func checkVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("got %d vectors for %d inputs", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("empty vector at %d", i)
		}
	}
	return nil
}

// transient reports whether err is worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool { return code == 429 || code >= 500 }

func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
