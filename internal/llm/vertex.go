package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbourn/review-insights-backend/internal/config"
)

// contentGenerator is the subset of *genai.GenerativeModel used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Vertex calls a Gemini model on Vertex AI. Credentials come from
// Application Default Credentials.
type Vertex struct {
	client     *genai.Client
	model      contentGenerator
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
}

// NewVertex dials Vertex AI and configures the model for JSON replies.
func NewVertex(ctx context.Context, cfg config.LLMConfig) (*Vertex, error) {
	client, err := genai.NewClient(ctx, cfg.VertexProject, cfg.VertexLocation)
	if err != nil {
		return nil, err
	}

	m := client.GenerativeModel(cfg.Model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemPrompt())}}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}

	return &Vertex{
		client:     client,
		model:      m,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}, nil
}

// Generate sends the user prompt and parses the first candidate's text.
func (v *Vertex) Generate(ctx context.Context, review string, rating int) (*ModelOutput, error) {
	prompt := genai.Text(UserPrompt(rating, review))

	raw, err := backoff.Retry(ctx, func() (string, error) {
		actx := ctx
		if v.timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, v.timeout)
			defer cancel()
		}
		resp, err := v.model.GenerateContent(actx, prompt)
		if err != nil {
			if ctx.Err() != nil || !retryableRPC(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		text := candidateText(resp)
		if text == "" {
			return "", backoff.Permanent(errors.New("empty model response"))
		}
		return text, nil
	},
		backoff.WithBackOff(v.newBackOff()),
		backoff.WithMaxTries(uint(v.maxRetries+1)),
	)
	if err != nil {
		return nil, &ProviderError{Provider: config.ProviderVertex, Err: err}
	}

	out, err := Parse(raw)
	if err != nil {
		return nil, &ProviderError{Provider: config.ProviderVertex, Err: err}
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (v *Vertex) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

// retryableRPC reports whether err is a transient RPC failure.
func retryableRPC(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return true
	}
	return false
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
