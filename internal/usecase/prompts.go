package usecase

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"promptmatrix/internal/domain"
)

// Built-in system prompts for the expert agents. A configured prompt
// directory can override any of them file-by-file.
const (
	x0OptimizerPrompt = `你是X0提示词优化师，专注于提示词的融合式优化。

核心能力：
- 提示词结构优化
- Token利用率提升
- 安全边界增强
- 多维度系统性优化

工作流程：
1. 分析现有提示词的结构和内容
2. 识别优化空间和改进点
3. 提供具体的优化建议
4. 确保优化后的提示词更加高效、安全、易用`

	x0ReversePrompt = `你是X0逆向工程师，专注于提示词的分析和反向工程。

核心能力：
- 提示词框架识别
- 工程师类型推理
- 优化空间分析
- 改进建议生成

工作流程：
1. 分析提示词的结构和组成
2. 识别使用的框架和模式
3. 评估提示词的质量和效果
4. 提供改进建议和优化方向`

	x1BasicPrompt = `你是X1基础提示词工程师，基于ATOM框架进行提示词设计。

ATOM框架：
- Action（行动）：明确任务目标
- Target（对象）：定义操作对象
- Output（输出）：规定输出格式
- Manner（方式）：指定执行方式

核心能力：
- ATOM框架标准化设计
- 通用场景提示词生成
- 结构化输出保证
- 最佳实践应用

设计原则：
- 清晰的任务定义
- 明确的输出格式
- 合理的约束条件
- 可复用的模板结构`

	x4ScenarioPrompt = `你是X4场景特化工程师，专注于特定应用场景的提示词设计。

核心能力：
- 场景化提示词设计
- 编程/写作/分析等专业场景适配
- 上下文优化
- 场景最佳实践应用

支持的场景类型：
- 编程开发场景
- 内容创作场景
- 数据分析场景
- 业务咨询场景
- 教育培训场景

设计原则：
- 深入理解场景需求
- 提供专业领域知识
- 优化场景特定的交互方式
- 确保输出符合场景规范`

	conductorPrompt = `你是智能指挥官（Conductor），负责与用户进行日常对话，并在需要时解释各专家工程师的分工。回答保持简洁、专业、友好。`
)

// builtinDescriptors returns the descriptors of the expert agents shipped
// with the registry.
func builtinDescriptors() []domain.AgentDescriptor {
	return []domain.AgentDescriptor{
		{
			ID:           domain.AgentX0Optimizer,
			SystemPrompt: x0OptimizerPrompt,
			DisplayName:  "X0优化师",
			Capabilities: []string{"提示词结构优化", "Token利用率提升", "安全边界增强", "多维度系统性优化"},
		},
		{
			ID:           domain.AgentX0Reverse,
			SystemPrompt: x0ReversePrompt,
			DisplayName:  "X0逆向工程师",
			Capabilities: []string{"提示词框架识别", "工程师类型推理", "优化空间分析", "改进建议生成"},
		},
		{
			ID:           domain.AgentX1Basic,
			SystemPrompt: x1BasicPrompt,
			DisplayName:  "X1基础工程师",
			Capabilities: []string{"ATOM框架标准化设计", "通用场景提示词生成", "结构化输出保证", "最佳实践应用"},
		},
		{
			ID:           domain.AgentX4Scenario,
			SystemPrompt: x4ScenarioPrompt,
			DisplayName:  "X4场景工程师",
			Capabilities: []string{"场景化提示词设计", "编程/写作/分析等专业场景", "上下文优化", "场景最佳实践"},
		},
	}
}

// builtinDisplayNames maps built-in agent ids to their user-facing names.
var builtinDisplayNames = map[domain.AgentType]string{
	domain.AgentConductor:   "指挥官",
	domain.AgentX0Optimizer: "X0优化师",
	domain.AgentX0Reverse:   "X0逆向工程师",
	domain.AgentX1Basic:     "X1基础工程师",
	domain.AgentX4Scenario:  "X4场景工程师",
}

// LoadPromptOverrides reads <AGENT_ID>.md files from dir and applies them as
// system prompt overrides to the registry. Missing dir or unreadable files
// are logged and skipped; built-ins remain in effect.
func LoadPromptOverrides(reg *Registry, dir string, logger *slog.Logger) {
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("prompt directory not readable, using built-in prompts", "dir", dir, "error", err)
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		id := domain.AgentType(strings.TrimSuffix(e.Name(), ".md"))
		desc, err := reg.Get(id)
		if err != nil {
			logger.Warn("prompt file does not match a registered agent", "file", e.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Warn("failed to read prompt file", "file", e.Name(), "error", err)
			continue
		}
		prompt := strings.TrimSpace(string(data))
		if prompt == "" {
			continue
		}
		updated := *desc
		updated.SystemPrompt = prompt
		reg.Register(updated)
		logger.Info("agent prompt overridden from file", "agent", string(id), "file", e.Name())
	}
}
