package domain

// Provider identifies a model provider family. The set is fixed; "custom"
// defers endpoint resolution to the custom-provider directory.
type Provider string

const (
	ProviderDeepSeek   Provider = "deepseek"
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
	ProviderCustom     Provider = "custom"
)

// Valid reports whether p is one of the supported provider values.
func (p Provider) Valid() bool {
	switch p {
	case ProviderDeepSeek, ProviderOpenAI, ProviderGemini, ProviderOpenRouter, ProviderCustom:
		return true
	}
	return false
}

// ProviderConfig is the active configuration of a completion client.
// Re-initializing a client replaces it wholesale; there is no partial merge
// at the client level.
type ProviderConfig struct {
	Provider         Provider `json:"provider" yaml:"provider"`
	APIKey           string   `json:"apiKey" yaml:"api_key"`
	BaseURL          string   `json:"baseURL,omitempty" yaml:"base_url"`
	Model            string   `json:"model" yaml:"model"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens        int      `json:"maxTokens,omitempty" yaml:"max_tokens"`
	TopP             *float64 `json:"topP,omitempty" yaml:"top_p"`
	CustomProviderID string   `json:"customProviderId,omitempty" yaml:"custom_provider_id"`
	ReasoningTokens  int      `json:"reasoningTokens,omitempty" yaml:"reasoning_tokens"`
}

// ChatOptions are per-call overrides. Each set field takes precedence over
// the corresponding field of the active config, which in turn takes
// precedence over the built-in defaults.
type ChatOptions struct {
	Model           string
	Temperature     *float64
	MaxTokens       int
	TopP            *float64
	ReasoningTokens int
}

// CustomProvider is one record of the external custom-provider directory,
// consulted only when Provider is "custom".
type CustomProvider struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	BaseURL     string   `json:"baseURL" yaml:"base_url"`
	Models      []string `json:"models" yaml:"models"`
	APIKey      string   `json:"apiKey,omitempty" yaml:"api_key"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"maxTokens,omitempty" yaml:"max_tokens"`
	TopP        *float64 `json:"topP,omitempty" yaml:"top_p"`
	CreatedAt   int64    `json:"createdAt,omitempty" yaml:"created_at"`
}

// ProviderDirectory resolves custom provider ids. Implemented outside the
// core; the core only reads from it.
type ProviderDirectory interface {
	Get(id string) (*CustomProvider, bool)
	List() []CustomProvider
}
