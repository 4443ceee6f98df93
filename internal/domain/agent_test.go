package domain

import "testing"

func TestNormalizeCustomID(t *testing.T) {
	tests := []struct {
		in   string
		want AgentType
	}{
		{"X", "CUSTOM_X"},
		{"CUSTOM_X", "CUSTOM_X"},
		{"CUSTOM_CUSTOM_X", "CUSTOM_X"},
		{"custom_x", "CUSTOM_x"},
		{"Custom_Custom_translator", "CUSTOM_translator"},
		{"", ""},
		{"   ", ""},
		{"CUSTOM_", ""},
		{"CUSTOM_CUSTOM_", ""},
		{"X1_BASIC", "X1_BASIC"}, // built-in passes through
		{"CONDUCTOR", "CONDUCTOR"},
	}
	for _, tt := range tests {
		if got := NormalizeCustomID(tt.in); got != tt.want {
			t.Errorf("NormalizeCustomID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAgentTypePredicates(t *testing.T) {
	if !AgentX1Basic.IsBuiltin() {
		t.Error("X1_BASIC should be builtin")
	}
	if AgentType("CUSTOM_X").IsBuiltin() {
		t.Error("CUSTOM_X should not be builtin")
	}
	if !AgentType("CUSTOM_X").IsCustom() {
		t.Error("CUSTOM_X should be custom")
	}
	if AgentX4Scenario.IsCustom() {
		t.Error("X4_SCENARIO should not be custom")
	}
}

func TestProviderValid(t *testing.T) {
	for _, p := range []Provider{ProviderDeepSeek, ProviderOpenAI, ProviderGemini, ProviderOpenRouter, ProviderCustom} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Provider("anthropic").Valid() {
		t.Error("unknown provider should be invalid")
	}
}
