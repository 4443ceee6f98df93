package domain

import "time"

// InputSource selects where a flow step takes its input from.
type InputSource string

const (
	// InputUser feeds the step the last user message in history.
	InputUser InputSource = "user"
	// InputPreviousStep feeds the step the prior step's full output,
	// falling back to the last user message when there is none.
	InputPreviousStep InputSource = "previousStep"
	// InputCustom feeds the step its CustomInput verbatim.
	InputCustom InputSource = "custom"
)

// StepStatus is the per-step state machine: idle → running → success|error.
// success and error are terminal; there is no retry and no rollback.
type StepStatus string

const (
	StepIdle    StepStatus = "idle"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
)

// FlowStep is one step of a flow. Definition fields come from the template;
// Status, OutputSummary, OutputFull and ErrorMessage are runtime state,
// mutated in place during execution.
type FlowStep struct {
	ID                string      `json:"id" yaml:"id"`
	Title             string      `json:"title" yaml:"title"`
	AgentType         AgentType   `json:"agentType" yaml:"agent_type"`
	InputSource       InputSource `json:"inputSource" yaml:"input_source"`
	CustomInput       string      `json:"customInput,omitempty" yaml:"custom_input"`
	SystemPromptHints string      `json:"systemPromptHints,omitempty" yaml:"system_prompt_hints"`

	Status        StepStatus `json:"status,omitempty" yaml:"-"`
	OutputSummary string     `json:"outputSummary,omitempty" yaml:"-"`
	OutputFull    string     `json:"outputFull,omitempty" yaml:"-"`
	ErrorMessage  string     `json:"errorMessage,omitempty" yaml:"-"`
}

// FlowTemplate is an ordered, fixed sequence of step definitions. Runtime
// steps are derived from it with status idle.
type FlowTemplate struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Steps       []FlowStep `json:"steps" yaml:"steps"`
}

// FlowRun records one execution of a template.
type FlowRun struct {
	ID         string     `json:"id"`
	TemplateID string     `json:"templateId"`
	Status     StepStatus `json:"status"`
	Steps      []FlowStep `json:"steps"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

// FlowRunStore persists flow run records. Implementations live outside the
// flow engine.
type FlowRunStore interface {
	SaveRun(run FlowRun) error
	GetRun(id string) (*FlowRun, error)
	ListRuns(limit int) ([]FlowRun, error)
}
