package domain

// Intent is the classifier's categorical guess at what kind of help the
// user wants. The set is closed.
type Intent string

const (
	IntentReverseAnalysis Intent = "REVERSE_ANALYSIS"
	IntentOptimize        Intent = "OPTIMIZE"
	IntentScenarioDesign  Intent = "SCENARIO_DESIGN"
	IntentBasicDesign     Intent = "BASIC_DESIGN"
	IntentChat            Intent = "CHAT"
)

// IntentOrder is the fixed evaluation order of intents during
// classification. A tie for the top score is treated as ambiguous and
// resolves to BASIC_DESIGN rather than depending on order.
var IntentOrder = []Intent{
	IntentReverseAnalysis,
	IntentOptimize,
	IntentScenarioDesign,
	IntentBasicDesign,
	IntentChat,
}

// RoutingDecision is produced once per request by the conductor. It is
// embedded in the response envelope and logged, never stored on its own.
type RoutingDecision struct {
	Intent      Intent    `json:"intent"`
	TargetAgent AgentType `json:"targetAgent"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
}

// RequestContext is built fresh per request from caller-supplied overrides
// merged with session defaults. ForcedAgent, when non-empty, bypasses
// intent classification entirely.
type RequestContext struct {
	UserInput   string
	History     []Message
	Config      ProviderConfig
	ForcedAgent AgentType
}
