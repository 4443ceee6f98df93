package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation. Messages are
// append-only: new turns are appended to history, never mutated in place.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Usage tracks token consumption as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the outcome of a blocking completion call.
type ChatResult struct {
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
	Model    string `json:"model,omitempty"`
	Usage    Usage  `json:"usage"`
}

// StreamDelta is a single incremental element of a streaming response.
// Content and Thinking are the two logical channels: Content carries model
// output fragments, Thinking carries routing/progress narration for UI
// feedback. Deltas are delivered strictly in arrival order.
type StreamDelta struct {
	Content  string `json:"content,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Usage    *Usage `json:"usage,omitempty"`
	// Err marks the stream as failed. The delta carrying it is terminal
	// (Done is set as well) and any content delivered before it is partial.
	Err error `json:"-"`
}
