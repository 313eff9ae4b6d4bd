// Package llm turns a rating and review into a structured analysis by calling
// a configured text-generation provider and validating its reply.
//
// Providers:
//   - mock:   deterministic, offline output derived from the input
//   - groq:   OpenAI-compatible chat completions on api.groq.com
//   - openai: OpenAI chat completions
//   - vertex: Gemini on Google Vertex AI
//
// Every failure, whether transport, provider status or an unparsable reply,
// is returned as *ProviderError. Callers that need the parse detail can reach
// the inner *ParseError with errors.As.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/review-insights-backend/internal/config"
)

// Client generates a ModelOutput for one submission.
type Client interface {
	Generate(ctx context.Context, review string, rating int) (*ModelOutput, error)
}

// ProviderError wraps any failure of a provider call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// New builds the client selected by cfg.Provider, instrumented with metrics
// and tracing. The returned client may implement io.Closer.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	var next Client
	switch cfg.Provider {
	case config.ProviderMock:
		next = NewMock(cfg.Model)
	case config.ProviderGroq, config.ProviderOpenAI:
		next = NewOpenAICompat(cfg)
	case config.ProviderVertex:
		v, err := NewVertex(ctx, cfg)
		if err != nil {
			return nil, &ProviderError{Provider: cfg.Provider, Err: err}
		}
		next = v
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
	return Instrument(next, cfg.Provider, cfg.Model), nil
}

// Instrument wraps next with Prometheus metrics and an OpenTelemetry span.
func Instrument(next Client, provider, model string) Client {
	return &instrumented{next: next, provider: provider, model: model}
}

type instrumented struct {
	next     Client
	provider string
	model    string
}

func (c *instrumented) Generate(ctx context.Context, review string, rating int) (*ModelOutput, error) {
	tr := otel.Tracer("llm")
	ctx, span := tr.Start(ctx, "llm.Generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", c.provider),
			attribute.String("llm.model", c.model),
			attribute.Int("review.rating", rating),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := c.next.Generate(ctx, review, rating)
	llmLatency.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	llmRequests.WithLabelValues(c.provider, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, err
	}
	return out, nil
}

// Close releases the wrapped client when it holds resources.
func (c *instrumented) Close() error {
	if cl, ok := c.next.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func outcome(err error) string {
	var pe *ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &pe):
		return "invalid_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
