package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmatrix/internal/domain"
)

// fakeClient records the last call and replays canned results.
type fakeClient struct {
	mu           sync.Mutex
	lastMessages []domain.Message
	lastOpts     *domain.ChatOptions
	result       *domain.ChatResult
	err          error
	streamDeltas []domain.StreamDelta
	streamErr    error
}

func (f *fakeClient) Chat(_ context.Context, msgs []domain.Message, opts *domain.ChatOptions) (*domain.ChatResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessages = msgs
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.ChatResult{Content: "ok"}, nil
}

func (f *fakeClient) ChatStream(_ context.Context, msgs []domain.Message, opts *domain.ChatOptions) (<-chan domain.StreamDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessages = msgs
	f.lastOpts = opts
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan domain.StreamDelta, len(f.streamDeltas)+1)
	for _, d := range f.streamDeltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func (f *fakeClient) IsInitialized() bool { return true }

func (f *fakeClient) messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessages
}

func (f *fakeClient) options() *domain.ChatOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

func TestExpertAgentComposesMessages(t *testing.T) {
	client := &fakeClient{result: &domain.ChatResult{Content: "设计结果"}}
	agent := &expertAgent{
		id: domain.AgentX1Basic, registry: NewRegistry(), client: client,
		buildPrompt: basicUserPrompt, suggestions: basicSuggestions, logger: testLogger(),
	}

	res, err := agent.Execute(context.Background(), domain.RequestContext{UserInput: "做一个翻译agent"})
	require.NoError(t, err)

	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, x1BasicPrompt, msgs[0].Content)
	assert.Equal(t, domain.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "用户需求：做一个翻译agent")
	assert.Contains(t, msgs[1].Content, "ATOM框架")

	assert.Equal(t, "设计结果", res.Content)
	assert.Equal(t, basicSuggestions, res.Suggestions)
	assert.Equal(t, estimateTokens("设计结果"), res.TokensUsed)
	assert.Nil(t, client.options())
}

func TestExpertAgentUsesPromptOverride(t *testing.T) {
	reg := NewRegistry()
	reg.Register(domain.AgentDescriptor{
		ID:           domain.AgentX4Scenario,
		SystemPrompt: "替换后的提示词",
		DisplayName:  "X4场景工程师",
	})

	client := &fakeClient{}
	agent := &expertAgent{
		id: domain.AgentX4Scenario, registry: reg, client: client,
		buildPrompt: scenarioUserPrompt, suggestions: scenarioSuggestions, logger: testLogger(),
	}

	_, err := agent.Execute(context.Background(), domain.RequestContext{UserInput: "编程帮手"})
	require.NoError(t, err)
	assert.Equal(t, "替换后的提示词", client.messages()[0].Content)
}

func TestScenarioUserPromptEmbedsScenario(t *testing.T) {
	prompt := scenarioUserPrompt("帮我做一个代码审查工具")
	assert.Contains(t, prompt, "请设计一个编程场景的专业Agent提示词")
	assert.Contains(t, prompt, "针对编程场景优化")
	assert.Contains(t, prompt, "用户需求：帮我做一个代码审查工具")
}

func TestDetectScenario(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"帮我写代码", "编程"},
		{"I need a coding helper", "编程"},
		{"写一篇文章", "写作"},
		{"data analysis workflow", "数据分析"},
		{"客服机器人", "客服"},
		{"随便聊聊", "通用"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectScenario(tt.input), "input %q", tt.input)
	}
}

func TestConductorAgentIncludesHistory(t *testing.T) {
	client := &fakeClient{}
	agent := &conductorAgent{client: client, logger: testLogger()}

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "你好"},
		{Role: domain.RoleAssistant, Content: "你好！"},
	}
	_, err := agent.Execute(context.Background(), domain.RequestContext{
		UserInput: "你能做什么", History: history,
	})
	require.NoError(t, err)

	msgs := client.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, conductorPrompt, msgs[0].Content)
	assert.Equal(t, "你好", msgs[1].Content)
	assert.Equal(t, "你好！", msgs[2].Content)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "你能做什么"}, msgs[3])
}

func TestCustomAgentComposition(t *testing.T) {
	client := &fakeClient{}
	agent := &customAgent{
		cfg: domain.CustomAgentConfig{
			ID:        "CUSTOM_TRANSLATOR",
			Name:      "翻译官",
			Prompt:    "你是专业翻译",
			Expertise: "法律文书",
		},
		client: client,
		logger: testLogger(),
	}

	temp := 0.3
	rc := domain.RequestContext{
		UserInput: "翻译这段话",
		History:   []domain.Message{{Role: domain.RoleUser, Content: "之前的话"}},
		Config: domain.ProviderConfig{
			Model: "deepseek-chat", Temperature: &temp, MaxTokens: 2048,
		},
	}
	_, err := agent.Execute(context.Background(), rc)
	require.NoError(t, err)

	msgs := client.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "你是专业翻译\n\n专业领域：法律文书", msgs[0].Content)
	assert.Equal(t, "之前的话", msgs[1].Content)
	assert.Equal(t, "翻译这段话", msgs[2].Content)

	opts := client.options()
	require.NotNil(t, opts)
	assert.Equal(t, "deepseek-chat", opts.Model)
	assert.Equal(t, &temp, opts.Temperature)
	assert.Equal(t, 2048, opts.MaxTokens)
}

func TestCustomAgentWithoutExpertise(t *testing.T) {
	client := &fakeClient{}
	agent := &customAgent{
		cfg:    domain.CustomAgentConfig{ID: "CUSTOM_X", Prompt: "系统提示"},
		client: client,
		logger: testLogger(),
	}

	_, err := agent.Execute(context.Background(), domain.RequestContext{UserInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "系统提示", client.messages()[0].Content)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 2, estimateTokens("hello world"))
	// 2 CJK runes * 1.5 + one whitespace-separated word.
	assert.Equal(t, 4, estimateTokens("你好"))
	// 4 CJK runes * 1.5 + 2 words = 8.
	assert.Equal(t, 8, estimateTokens("你好 世界"))
}
