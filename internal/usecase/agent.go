package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"promptmatrix/internal/domain"
)

// CompletionClient is the slice of the LLM adapter the executors need.
type CompletionClient interface {
	Chat(ctx context.Context, messages []domain.Message, opts *domain.ChatOptions) (*domain.ChatResult, error)
	ChatStream(ctx context.Context, messages []domain.Message, opts *domain.ChatOptions) (<-chan domain.StreamDelta, error)
	IsInitialized() bool
}

// executionResult is what an executor returns from a blocking run.
type executionResult struct {
	Content     string
	TokensUsed  int
	Suggestions []string
}

// executor runs one agent's task over a request context.
type executor interface {
	Execute(ctx context.Context, rc domain.RequestContext) (*executionResult, error)
	ExecuteStream(ctx context.Context, rc domain.RequestContext) (<-chan domain.StreamDelta, error)
}

// expertAgent is a thin composer: static system prompt plus a templated
// user instruction built from the raw input. History is deliberately not
// included; each expert run stands alone.
type expertAgent struct {
	id          domain.AgentType
	registry    *Registry
	client      CompletionClient
	buildPrompt func(input string) string
	suggestions []string
	logger      *slog.Logger
}

func (a *expertAgent) messages(rc domain.RequestContext) ([]domain.Message, error) {
	desc, err := a.registry.Get(a.id)
	if err != nil {
		return nil, err
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: desc.SystemPrompt},
		{Role: domain.RoleUser, Content: a.buildPrompt(rc.UserInput)},
	}, nil
}

func (a *expertAgent) Execute(ctx context.Context, rc domain.RequestContext) (*executionResult, error) {
	a.logger.Debug("expert agent executing", "agent", string(a.id), "input_len", len(rc.UserInput))

	msgs, err := a.messages(rc)
	if err != nil {
		return nil, err
	}
	result, err := a.client.Chat(ctx, msgs, nil)
	if err != nil {
		return nil, err
	}
	return &executionResult{
		Content:     result.Content,
		TokensUsed:  estimateTokens(result.Content),
		Suggestions: a.suggestions,
	}, nil
}

func (a *expertAgent) ExecuteStream(ctx context.Context, rc domain.RequestContext) (<-chan domain.StreamDelta, error) {
	a.logger.Debug("expert agent streaming", "agent", string(a.id), "input_len", len(rc.UserInput))

	msgs, err := a.messages(rc)
	if err != nil {
		return nil, err
	}
	return a.client.ChatStream(ctx, msgs, nil)
}

// conductorAgent handles plain conversation: persona prompt, full history,
// then the new user turn.
type conductorAgent struct {
	client CompletionClient
	logger *slog.Logger
}

func (a *conductorAgent) messages(rc domain.RequestContext) []domain.Message {
	msgs := make([]domain.Message, 0, len(rc.History)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: conductorPrompt})
	msgs = append(msgs, rc.History...)
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: rc.UserInput})
	return msgs
}

func (a *conductorAgent) Execute(ctx context.Context, rc domain.RequestContext) (*executionResult, error) {
	result, err := a.client.Chat(ctx, a.messages(rc), nil)
	if err != nil {
		return nil, err
	}
	return &executionResult{
		Content:    result.Content,
		TokensUsed: estimateTokens(result.Content),
	}, nil
}

func (a *conductorAgent) ExecuteStream(ctx context.Context, rc domain.RequestContext) (<-chan domain.StreamDelta, error) {
	return a.client.ChatStream(ctx, a.messages(rc), nil)
}

// customAgent runs a user-defined system prompt with full history and the
// active provider config as call options.
type customAgent struct {
	cfg    domain.CustomAgentConfig
	client CompletionClient
	logger *slog.Logger
}

func (a *customAgent) messages(rc domain.RequestContext) []domain.Message {
	system := a.cfg.Prompt
	if a.cfg.Expertise != "" {
		system += "\n\n专业领域：" + a.cfg.Expertise
	}

	msgs := make([]domain.Message, 0, len(rc.History)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: system})
	msgs = append(msgs, rc.History...)
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: rc.UserInput})
	return msgs
}

func (a *customAgent) options(rc domain.RequestContext) *domain.ChatOptions {
	return &domain.ChatOptions{
		Model:           rc.Config.Model,
		Temperature:     rc.Config.Temperature,
		MaxTokens:       rc.Config.MaxTokens,
		TopP:            rc.Config.TopP,
		ReasoningTokens: rc.Config.ReasoningTokens,
	}
}

func (a *customAgent) Execute(ctx context.Context, rc domain.RequestContext) (*executionResult, error) {
	a.logger.Debug("custom agent executing", "name", a.cfg.Name)

	result, err := a.client.Chat(ctx, a.messages(rc), a.options(rc))
	if err != nil {
		return nil, err
	}
	return &executionResult{
		Content:    result.Content,
		TokensUsed: estimateTokens(result.Content),
	}, nil
}

func (a *customAgent) ExecuteStream(ctx context.Context, rc domain.RequestContext) (<-chan domain.StreamDelta, error) {
	a.logger.Debug("custom agent streaming", "name", a.cfg.Name)
	return a.client.ChatStream(ctx, a.messages(rc), a.options(rc))
}

// --- per-expert user prompt templates ---

func optimizerUserPrompt(input string) string {
	return fmt.Sprintf(`请优化以下提示词：

%s

优化要求：
1. 提升Token利用率15-20%%
2. 增强安全防护机制
3. 保持原有框架结构100%%
4. 提供详细的优化对比报告`, input)
}

func reverseUserPrompt(input string) string {
	return fmt.Sprintf(`请对以下提示词进行逆向分析：

%s

分析要求：
1. 识别提示词框架类型（ATOM/Role-Profile/混合/自由）
2. 推理可能使用的工程师类型（X1/X2/X3/X4）
3. 识别优化空间和改进点
4. 提供具体的优化建议`, input)
}

func basicUserPrompt(input string) string {
	return fmt.Sprintf(`请基于ATOM框架设计一个Agent提示词：

用户需求：%s

设计要求：
1. 使用标准ATOM框架（Role, Background, Profile, Skills, Goals, Constrains, Workflow, OutputFormat）
2. 确保结构化输出
3. 提供清晰的执行指南
4. 适用于通用场景`, input)
}

func scenarioUserPrompt(input string) string {
	scenario := detectScenario(input)
	return fmt.Sprintf(`请设计一个%s场景的专业Agent提示词：

用户需求：%s

设计要求：
1. 针对%s场景优化
2. 包含场景特定的Skills和Workflow
3. 提供场景最佳实践
4. 确保专业性和实用性`, scenario, input, scenario)
}

// detectScenario picks the scenario label for the X4 user template. First
// matching category wins; unmatched inputs get the generic label.
func detectScenario(input string) string {
	lower := strings.ToLower(input)
	categories := []struct {
		name     string
		keywords []string
	}{
		{"编程", []string{"编程", "代码", "开发", "programming", "coding"}},
		{"写作", []string{"写作", "文章", "内容", "writing", "content"}},
		{"数据分析", []string{"数据", "分析", "data", "analysis"}},
		{"客服", []string{"客服", "助手", "customer service"}},
	}
	for _, cat := range categories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return cat.name
			}
		}
	}
	return "通用"
}

// estimateTokens approximates token count: CJK chars weigh 1.5, everything
// else counts by whitespace-separated words. Rough by design; provider
// usage numbers are authoritative when present.
func estimateTokens(text string) int {
	cjk := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fa5 {
			cjk++
		}
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(cjk)*1.5 + float64(words)))
}

// Fixed per-expert suggestion strings attached to blocking responses.
var (
	optimizerSuggestions = []string{"已优化Token利用率", "已增强安全边界", "已保持框架兼容性"}
	reverseSuggestions   = []string{"框架识别完成", "工程师类型推理完成", "优化空间分析完成"}
	basicSuggestions     = []string{"已应用ATOM框架", "结构化设计完成"}
	scenarioSuggestions  = []string{"场景化设计完成", "已优化场景上下文"}
)
