package harnessports

import (
	"context"
)

// PromptMessage represents a single chat message used to build prompts.
type PromptMessage struct {
	Role    string // "user" | "assistant"
	Content string
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string            // persona directive
	Messages []PromptMessage   // ordered chat messages, first one from the user
	Meta     map[string]string // seed, persona, round; used for tracing and by test stubs
}

// Options controls sampling and limits for one call.
type Options struct {
	Role         string // persona issuing the call, for backends that tag requests
	MaxNewTokens int
	Temperature  float64
	// TimeoutMs applies to the provider call only (not the overall run deadline)
	TimeoutMs int
}

// Usage captures token accounting for cost/telemetry.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the provider's response.
type Completion struct {
	Text  string
	Raw   any    // raw provider payload for debugging/telemetry
	Usage *Usage // optional usage information
}

// Provider is the abstraction for text-generation backends.
type Provider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}

// Embedder is the abstraction for embedding backends.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
