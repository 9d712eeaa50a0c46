package service

import (
	"context"
)

// Completer produces a single chat completion
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
}

// StreamCompleter streams a chat completion, calling onDelta for every
// content fragment, and returns the accumulated text
type StreamCompleter interface {
	CompleteStream(ctx context.Context, messages []ChatMessage, opts CompletionOptions, onDelta func(delta string) error) (string, error)
}

// Embedder turns one text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is the full OpenAI-compatible surface used by the router
type Provider interface {
	Completer
	StreamCompleter
	Embedder
	IsEnabled() bool
}

// CompletionOptions overrides configured defaults for one call
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // request a json_object response
}

// StreamChunk represents a generic streaming response chunk
type StreamChunk struct {
	// Regular content (always present in streaming)
	Content string

	// Thinking/reasoning content (provider-specific, e.g., DeepSeek)
	ThinkingContent string

	// Role (assistant, user, system)
	Role string

	// Whether this is the final chunk
	Done bool
}

// Ensure OpenAIClient implements Provider
var _ Provider = (*OpenAIClient)(nil)
