package llm

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the full input to an LLM completion call.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// RequestOptions tunes a single completion. Nil fields fall back to adapter defaults.
type RequestOptions struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	StopSeqs    []string `json:"stop,omitempty"`
}

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

// NewRequestOptions builds options from plain values; zero values are left unset.
func NewRequestOptions(maxTokens int, temperature float64) *RequestOptions {
	opts := &RequestOptions{}
	if maxTokens > 0 {
		opts.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		opts.Temperature = &temperature
	}
	return opts
}

// MaxTokensOr returns the configured token limit or def.
func (o *RequestOptions) MaxTokensOr(def int) int {
	if o != nil && o.MaxTokens != nil {
		return *o.MaxTokens
	}
	return def
}
