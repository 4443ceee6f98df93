package usecase

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"promptmatrix/internal/domain"
)

// Conductor performs rule-based intent classification and routing. Scoring
// is pure and deterministic: no model calls, no randomness.
type Conductor struct {
	logger *slog.Logger
}

// NewConductor creates a conductor.
func NewConductor(logger *slog.Logger) *Conductor {
	return &Conductor{logger: logger}
}

// intentAgentMap routes each intent to its expert agent.
var intentAgentMap = map[domain.Intent]domain.AgentType{
	domain.IntentReverseAnalysis: domain.AgentX0Reverse,
	domain.IntentOptimize:        domain.AgentX0Optimizer,
	domain.IntentScenarioDesign:  domain.AgentX4Scenario,
	domain.IntentBasicDesign:     domain.AgentX1Basic,
	domain.IntentChat:            domain.AgentConductor,
}

// baseConfidence is the per-intent starting confidence of a routing
// decision.
var baseConfidence = map[domain.Intent]float64{
	domain.IntentReverseAnalysis: 0.9,
	domain.IntentOptimize:        0.8,
	domain.IntentScenarioDesign:  0.75,
	domain.IntentBasicDesign:     0.6,
	domain.IntentChat:            0.5,
}

var intentReasoning = map[domain.Intent]string{
	domain.IntentReverseAnalysis: "检测到完整提示词结构，调用X0逆向工程师进行分析",
	domain.IntentOptimize:        "检测到优化需求关键词，调用X0优化师进行提升",
	domain.IntentScenarioDesign:  "检测到场景化需求，调用X4场景工程师进行设计",
	domain.IntentBasicDesign:     "通用Agent设计需求，调用X1基础工程师",
	domain.IntentChat:            "普通对话，由Conductor处理",
}

// AnalyzeIntent scores the input against each intent and returns the
// highest-scoring one. A tie for the top score, or a best score below 0.6,
// falls back to BASIC_DESIGN.
func (c *Conductor) AnalyzeIntent(input string, history []domain.Message) domain.Intent {
	scores := map[domain.Intent]float64{
		domain.IntentReverseAnalysis: scorePromptContent(input),
		domain.IntentOptimize:        scoreOptimizationRequest(input),
		domain.IntentScenarioDesign:  scoreScenarioRequest(input),
		domain.IntentBasicDesign:     0.3,
		domain.IntentChat:            0.1,
	}

	best := domain.IntentOrder[0]
	tied := false
	for _, intent := range domain.IntentOrder[1:] {
		switch {
		case scores[intent] > scores[best]:
			best = intent
			tied = false
		case scores[intent] == scores[best]:
			tied = true
		}
	}

	if tied || scores[best] < 0.6 {
		c.logger.Debug("intent fallback", "best", string(best), "score", scores[best], "tied", tied)
		return domain.IntentBasicDesign
	}

	c.logger.Debug("intent detected", "intent", string(best), "score", scores[best])
	return best
}

// MakeRoutingDecision maps an intent to its target agent with a confidence
// estimate and a human-readable reasoning string.
func (c *Conductor) MakeRoutingDecision(intent domain.Intent, rc domain.RequestContext) domain.RoutingDecision {
	confidence := baseConfidence[intent]
	if len(rc.History) > 0 {
		confidence += 0.05
	}
	if utf8.RuneCountInString(rc.UserInput) > 50 {
		confidence += 0.02
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	decision := domain.RoutingDecision{
		Intent:      intent,
		TargetAgent: intentAgentMap[intent],
		Confidence:  confidence,
		Reasoning:   intentReasoning[intent],
	}
	c.logger.Info("routing decision",
		"intent", string(decision.Intent),
		"agent", string(decision.TargetAgent),
		"confidence", decision.Confidence,
	)
	return decision
}

// promptStructureKeywords signal a pasted, already-structured prompt.
var promptStructureKeywords = []string{
	"Role", "Background", "Profile", "Skills", "Goals",
	"Constrains", "Workflow", "OutputFormat",
	"你是", "作为", "角色", "技能", "目标",
}

// scorePromptContent estimates how likely the input is a complete prompt:
// keyword hits (0-0.4), line structure (0-0.3), and length (0-0.3).
func scorePromptContent(input string) float64 {
	score := 0.0

	matched := 0
	for _, kw := range promptStructureKeywords {
		if strings.Contains(input, kw) || strings.Contains(input, strings.ToLower(kw)) {
			matched++
		}
	}
	score += min(float64(matched)*0.1, 0.4)

	lines := strings.Count(input, "\n") + 1
	if lines > 5 {
		score += 0.2
	}
	if lines > 10 {
		score += 0.1
	}

	length := utf8.RuneCountInString(input)
	if length > 200 {
		score += 0.2
	}
	if length > 500 {
		score += 0.1
	}

	return min(score, 1.0)
}

var optimizeKeywords = []struct {
	word   string
	weight float64
}{
	{"优化", 1.0},
	{"改进", 0.8},
	{"提升", 0.8},
	{"增强", 0.7},
	{"完善", 0.6},
	{"optimize", 1.0},
	{"improve", 0.8},
	{"enhance", 0.7},
	{"refine", 0.6},
	{"修改", 0.5},
	{"调整", 0.4},
}

// scoreOptimizationRequest sums weighted keyword hits; very short inputs
// with a hit are treated as ambiguous and halved.
func scoreOptimizationRequest(input string) float64 {
	lower := strings.ToLower(input)

	score := 0.0
	for _, kw := range optimizeKeywords {
		if strings.Contains(lower, strings.ToLower(kw.word)) {
			score += kw.weight * 0.3
		}
	}

	if utf8.RuneCountInString(input) < 10 && score > 0 {
		score *= 0.5
	}

	return min(score, 1.0)
}

var scenarioCategories = []struct {
	name     string
	keywords []string
	weight   float64
}{
	{"编程", []string{"编程", "代码", "开发", "programming", "coding", "developer", "程序", "软件"}, 1.0},
	{"写作", []string{"写作", "文章", "内容", "writing", "content", "article", "文案", "创作"}, 1.0},
	{"数据分析", []string{"数据分析", "分析", "analysis", "data", "数据", "统计", "报表"}, 1.0},
	{"客服助手", []string{"客服", "助手", "顾问", "assistant", "consultant", "服务", "支持"}, 0.8},
	{"教育", []string{"教育", "教学", "老师", "学习", "培训", "课程", "education"}, 0.8},
	{"设计", []string{"设计", "design", "ui", "ux", "界面", "创意"}, 0.8},
}

// scoreScenarioRequest scores each category as 0.2 per keyword hit times
// the category weight, and returns the best category's score.
func scoreScenarioRequest(input string) float64 {
	lower := strings.ToLower(input)

	maxScore := 0.0
	for _, cat := range scenarioCategories {
		catScore := 0.0
		for _, kw := range cat.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				catScore += 0.2
			}
		}
		catScore *= cat.weight
		if catScore > maxScore {
			maxScore = catScore
		}
	}

	return min(maxScore, 1.0)
}
