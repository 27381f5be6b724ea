// Package llm holds the model-service client: a single synchronous
// chat-completion call with upstream failures surfaced as distinguishable
// status codes so callers can react to rate limits and quota exhaustion.
package llm

import (
	"context"
	"fmt"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion request. APIKey is per-request: each
// caller supplies their own model credentials, the server holds none.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	APIKey      string
}

// ChatClient is the interface the pipeline depends on.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// APIError is a non-2xx reply from the model service. Status carries the
// upstream HTTP status so 429 (rate limit) and 402 (quota/billing) pass
// through to the caller distinctly.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model service status %d: %s", e.Status, e.Body)
}
