package flow

import "promptmatrix/internal/domain"

// DefaultTemplates returns the flow templates shipped with the engine.
func DefaultTemplates() []domain.FlowTemplate {
	return []domain.FlowTemplate{
		{
			ID:          "flow-programming-assistant",
			Name:        "编程助手设计（单步 X4）",
			Description: "使用 X4 场景工程师，一步生成专业编程助手提示词",
			Steps: []domain.FlowStep{
				{
					ID:                "step-x4-programming",
					Title:             "X4 场景工程师：设计编程助手提示词",
					AgentType:         domain.AgentX4Scenario,
					InputSource:       domain.InputUser,
					CustomInput:       "根据用户对编程语言、框架和风格的描述，输出一个可直接用于代码助手的系统提示词。",
					SystemPromptHints: "请使用清晰的结构化格式，包含角色定位、能力边界、安全约束和交互风格说明。",
				},
			},
		},
		{
			ID:          "flow-prompt-optimizer",
			Name:        "提示词优化流水线（X0→X1→X0）",
			Description: "逆向分析 → 标准化 → 系统性优化的三步流水线",
			Steps: []domain.FlowStep{
				{
					ID:                "step-x0-reverse",
					Title:             "X0 逆向工程师：分析现有提示词",
					AgentType:         domain.AgentX0Reverse,
					InputSource:       domain.InputUser,
					CustomInput:       "用户会提供一个现有提示词，请输出其结构分析与设计意图总结，方便后续重构。",
					SystemPromptHints: "重点识别角色设定、输入输出约束、安全边界和工作流步骤，并用结构化列表输出。",
				},
				{
					ID:                "step-x1-basic",
					Title:             "X1 基础工程师：重构为 ATOM 提示词",
					AgentType:         domain.AgentX1Basic,
					InputSource:       domain.InputPreviousStep,
					CustomInput:       "基于上一步的分析结果，用 ATOM 或类似结构重写一个更规范的系统提示词。",
					SystemPromptHints: "输出只包含新的系统提示词本身，不需要额外解释，方便用户直接复制使用。",
				},
				{
					ID:                "step-x0-optimizer",
					Title:             "X0 优化师：系统性优化并给出对比",
					AgentType:         domain.AgentX0Optimizer,
					InputSource:       domain.InputPreviousStep,
					CustomInput:       "在保留核心语义的前提下，从鲁棒性、安全性和可维护性三个维度优化提示词。",
					SystemPromptHints: "先简要说明主要改进点，再给出最终优化后的完整提示词。",
				},
			},
		},
	}
}
