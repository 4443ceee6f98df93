package domain

import (
	"strings"
	"time"
)

// AgentType identifies an agent. Built-in ids are fixed; user-defined ids
// carry exactly one CUSTOM_ prefix after normalization.
type AgentType string

// Built-in agent identifiers.
const (
	AgentConductor   AgentType = "CONDUCTOR"
	AgentX0Optimizer AgentType = "X0_OPTIMIZER"
	AgentX0Reverse   AgentType = "X0_REVERSE"
	AgentX1Basic     AgentType = "X1_BASIC"
	AgentX4Scenario  AgentType = "X4_SCENARIO"
)

// customPrefix marks user-registered agents.
const customPrefix = "CUSTOM_"

// IsBuiltin reports whether t is one of the fixed built-in identifiers.
func (t AgentType) IsBuiltin() bool {
	switch t {
	case AgentConductor, AgentX0Optimizer, AgentX0Reverse, AgentX1Basic, AgentX4Scenario:
		return true
	}
	return false
}

// IsCustom reports whether t is a normalized custom identifier.
func (t AgentType) IsCustom() bool {
	return strings.HasPrefix(string(t), customPrefix)
}

// NormalizeCustomID maps a caller-supplied custom id to its canonical
// AgentType: any number of leading CUSTOM_ prefixes (case-insensitive) is
// stripped, then exactly one CUSTOM_ is re-applied. Returns "" when nothing
// remains after stripping, which callers must treat as a no-op registration.
// Built-in ids pass through untouched.
func NormalizeCustomID(id string) AgentType {
	if AgentType(id).IsBuiltin() {
		return AgentType(id)
	}
	rest := strings.TrimSpace(id)
	for len(rest) >= len(customPrefix) && strings.EqualFold(rest[:len(customPrefix)], customPrefix) {
		rest = strings.TrimSpace(rest[len(customPrefix):])
	}
	if rest == "" {
		return ""
	}
	return AgentType(customPrefix + rest)
}

// AgentDescriptor holds the prompt and metadata for one registered agent.
type AgentDescriptor struct {
	ID           AgentType `json:"id"`
	SystemPrompt string    `json:"systemPrompt"`
	DisplayName  string    `json:"displayName"`
	Capabilities []string  `json:"capabilities"`
}

// CustomAgentConfig is the caller-facing registration payload for a
// user-defined agent. Expertise, when set, is appended to the system prompt.
type CustomAgentConfig struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Expertise string `json:"expertise,omitempty"`
}

// ResponseMetadata carries auxiliary information about one agent exchange.
type ResponseMetadata struct {
	TokensUsed      int      `json:"tokensUsed,omitempty"`
	ThinkingProcess string   `json:"thinkingProcess,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// AgentResponse is the normalized envelope returned for every routed request.
type AgentResponse struct {
	AgentType AgentType        `json:"agentType"`
	Content   string           `json:"content"`
	Intent    Intent           `json:"intent"`
	Metadata  ResponseMetadata `json:"metadata"`
	Timestamp time.Time        `json:"timestamp"`
}
