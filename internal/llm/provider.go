package llm

import "context"

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends the conversation and system prompt and returns the generated reply.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
	// Info reports the provider and model this adapter was built with.
	Info() Info
}

// Info describes a configured adapter. It never changes after construction.
type Info struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
