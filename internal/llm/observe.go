package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/seenimoa/tradelens/internal/logger"
)

// observed wraps a provider with a span and a structured log line per call.
type observed struct {
	LLMProvider
}

// Observe decorates p so every Chat call is traced and timed.
func Observe(p LLMProvider) LLMProvider {
	if _, ok := p.(observed); ok {
		return p
	}
	return observed{LLMProvider: p}
}

func (o observed) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	attachments := 0
	for _, m := range messages {
		attachments += len(m.Attachments)
	}
	op := logger.StartOperation(ctx, "llm.chat",
		"provider", o.Name(),
		"messages", len(messages),
		"attachments", attachments,
		"schema", opts != nil && opts.ResponseSchema != nil,
		"web_search", opts != nil && opts.WebSearch,
	)
	resp, err := o.LLMProvider.Chat(op.Context(), messages, opts)
	if err != nil {
		op.EndWithError(err, "rate_limited", IsRateLimit(err))
		return nil, err
	}
	op.End("model", resp.Model, "tokens", resp.Usage.TotalTokens, "sources", len(resp.Sources))
	return resp, nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
