package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmatrix/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner replays canned outputs per agent and records every call.
// failOn rejects the stream at setup; dropOn starts streaming and then
// fails with a terminal error delta.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runnerCall
	outputs map[domain.AgentType]string
	failOn  domain.AgentType
	dropOn  domain.AgentType
}

type runnerCall struct {
	input string
	agent domain.AgentType
}

func (f *fakeRunner) HandleRequestStream(_ context.Context, input string, forced domain.AgentType) (<-chan domain.StreamDelta, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{input: input, agent: forced})
	f.mu.Unlock()

	if forced == f.failOn {
		return nil, errors.New("provider unavailable")
	}
	if forced == f.dropOn {
		ch := make(chan domain.StreamDelta, 2)
		ch <- domain.StreamDelta{Content: "截断的输出"}
		ch <- domain.StreamDelta{Err: errors.New("LLM stream failed: unexpected EOF"), Done: true}
		close(ch)
		return ch, nil
	}
	out := f.outputs[forced]
	ch := make(chan domain.StreamDelta, 3)
	// Split the canned output in two so accumulation is exercised.
	half := len(out) / 2
	ch <- domain.StreamDelta{Content: out[:half]}
	ch <- domain.StreamDelta{Content: out[half:]}
	ch <- domain.StreamDelta{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeRunner) recorded() []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runnerCall(nil), f.calls...)
}

func TestEngineDefaultsRegistered(t *testing.T) {
	e := NewEngine(&fakeRunner{}, nil, testLogger())

	templates := e.Templates()
	require.Len(t, templates, 2)
	assert.Equal(t, "flow-programming-assistant", templates[0].ID)
	assert.Equal(t, "flow-prompt-optimizer", templates[1].ID)
	assert.Len(t, templates[1].Steps, 3)
}

func TestSelectTemplateUnknown(t *testing.T) {
	e := NewEngine(&fakeRunner{}, nil, testLogger())
	err := e.SelectTemplate("flow-nope")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestSelectTemplateResetsSteps(t *testing.T) {
	e := NewEngine(&fakeRunner{}, nil, testLogger())
	require.NoError(t, e.SelectTemplate("flow-prompt-optimizer"))

	steps := e.Steps()
	require.Len(t, steps, 3)
	for _, s := range steps {
		assert.Equal(t, domain.StepIdle, s.Status)
		assert.Empty(t, s.OutputFull)
	}
}

func TestRunWithoutSelection(t *testing.T) {
	e := NewEngine(&fakeRunner{}, nil, testLogger())
	_, err := e.Run(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestRunPipelineChainsOutputs(t *testing.T) {
	runner := &fakeRunner{outputs: map[domain.AgentType]string{
		domain.AgentX0Reverse:   "analysis-output",
		domain.AgentX1Basic:     "rebuilt-prompt",
		domain.AgentX0Optimizer: "optimized-prompt",
	}}
	e := NewEngine(runner, nil, testLogger())
	require.NoError(t, e.SelectTemplate("flow-prompt-optimizer"))

	run, err := e.Run(context.Background(), "这是用户的原始提示词")
	require.NoError(t, err)

	assert.Equal(t, domain.StepSuccess, run.Status)
	assert.Equal(t, "flow-prompt-optimizer", run.TemplateID)
	assert.NotEmpty(t, run.ID)
	require.Len(t, run.Steps, 3)
	for _, s := range run.Steps {
		assert.Equal(t, domain.StepSuccess, s.Status)
	}
	assert.Equal(t, "analysis-output", run.Steps[0].OutputFull)
	assert.Equal(t, "rebuilt-prompt", run.Steps[1].OutputFull)
	assert.Equal(t, "optimized-prompt", run.Steps[2].OutputFull)

	calls := runner.recorded()
	require.Len(t, calls, 3)

	// Step 1 works on the user input, framed by its instruction and hints.
	assert.Equal(t, domain.AgentX0Reverse, calls[0].agent)
	assert.Contains(t, calls[0].input, "这是用户的原始提示词")
	assert.True(t, strings.HasPrefix(calls[0].input, "用户会提供一个现有提示词"))
	assert.Contains(t, calls[0].input, "结构化列表输出")

	// Steps 2 and 3 each consume the previous step's full output.
	assert.Equal(t, domain.AgentX1Basic, calls[1].agent)
	assert.Contains(t, calls[1].input, "analysis-output")
	assert.NotContains(t, calls[1].input, "这是用户的原始提示词")

	assert.Equal(t, domain.AgentX0Optimizer, calls[2].agent)
	assert.Contains(t, calls[2].input, "rebuilt-prompt")
}

func TestRunHaltsOnStepFailure(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[domain.AgentType]string{domain.AgentX0Reverse: "analysis-output"},
		failOn:  domain.AgentX1Basic,
	}
	e := NewEngine(runner, nil, testLogger())
	require.NoError(t, e.SelectTemplate("flow-prompt-optimizer"))

	run, err := e.Run(context.Background(), "原始提示词")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "X1 基础工程师")

	require.NotNil(t, run)
	assert.Equal(t, domain.StepError, run.Status)
	assert.Contains(t, run.Error, "provider unavailable")

	// The completed step keeps its output; the failed step records its
	// error; the remaining step never started.
	assert.Equal(t, domain.StepSuccess, run.Steps[0].Status)
	assert.Equal(t, "analysis-output", run.Steps[0].OutputFull)
	assert.Equal(t, domain.StepError, run.Steps[1].Status)
	assert.Equal(t, "provider unavailable", run.Steps[1].ErrorMessage)
	assert.Equal(t, domain.StepIdle, run.Steps[2].Status)

	assert.Len(t, runner.recorded(), 2)
}

func TestRunMarksStepErrorOnStreamFailure(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[domain.AgentType]string{domain.AgentX0Reverse: "analysis-output"},
		dropOn:  domain.AgentX1Basic,
	}
	e := NewEngine(runner, nil, testLogger())
	require.NoError(t, e.SelectTemplate("flow-prompt-optimizer"))

	run, err := e.Run(context.Background(), "原始提示词")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM stream failed")

	// A stream that dies after delivering chunks is a failed step, never a
	// success with truncated output.
	require.NotNil(t, run)
	assert.Equal(t, domain.StepError, run.Status)
	assert.Equal(t, domain.StepSuccess, run.Steps[0].Status)
	assert.Equal(t, domain.StepError, run.Steps[1].Status)
	assert.Contains(t, run.Steps[1].ErrorMessage, "LLM stream failed")
	assert.Empty(t, run.Steps[1].OutputFull)
	assert.Equal(t, domain.StepIdle, run.Steps[2].Status)
}

func TestRunPersistsRecord(t *testing.T) {
	store := NewFileStore(t.TempDir())
	runner := &fakeRunner{outputs: map[domain.AgentType]string{
		domain.AgentX4Scenario: "编程助手提示词",
	}}
	e := NewEngine(runner, store, testLogger())
	require.NoError(t, e.SelectTemplate("flow-programming-assistant"))

	run, err := e.Run(context.Background(), "我想要一个Go语言助手")
	require.NoError(t, err)

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.TemplateID, loaded.TemplateID)
	assert.Equal(t, domain.StepSuccess, loaded.Status)
	assert.Equal(t, "编程助手提示词", loaded.Steps[0].OutputFull)
}

func TestSummarizeTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("词", 250)
	sum := summarize(long)
	assert.Equal(t, 200, len([]rune(sum)))
	assert.Equal(t, strings.Repeat("词", 200), sum)

	short := "short output"
	assert.Equal(t, short, summarize(short))
}

func TestStepInputSources(t *testing.T) {
	user := domain.FlowStep{InputSource: domain.InputUser}
	assert.Equal(t, "question", stepInput(user, "question", "prev"))

	prevStep := domain.FlowStep{InputSource: domain.InputPreviousStep}
	assert.Equal(t, "prev", stepInput(prevStep, "question", "prev"))
	// First step with a previousStep source falls back to the user input.
	assert.Equal(t, "question", stepInput(prevStep, "question", ""))

	custom := domain.FlowStep{InputSource: domain.InputCustom, CustomInput: "fixed"}
	assert.Equal(t, "fixed", stepInput(custom, "question", "prev"))

	withHints := domain.FlowStep{
		InputSource:       domain.InputUser,
		CustomInput:       "instruction",
		SystemPromptHints: "hints",
	}
	assert.Equal(t, "instruction\n\nquestion\n\nhints", stepInput(withHints, "question", "prev"))
}
