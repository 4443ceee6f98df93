package flow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"promptmatrix/internal/domain"
	"promptmatrix/internal/infra/tracer"
)

// summaryRunes caps the per-step output summary length.
const summaryRunes = 200

// AgentRunner executes one agent request as a stream. The router satisfies
// this; the engine only ever forces the step's agent and never relies on
// intent classification.
type AgentRunner interface {
	HandleRequestStream(ctx context.Context, input string, forced domain.AgentType) (<-chan domain.StreamDelta, error)
}

// Engine runs flow templates step by step, strictly sequentially. A step
// failure halts the run; completed step outputs stay intact.
type Engine struct {
	runner AgentRunner
	store  domain.FlowRunStore
	logger *slog.Logger

	mu        sync.Mutex
	templates map[string]domain.FlowTemplate
	order     []string
	activeID  string
	steps     []domain.FlowStep
}

// NewEngine creates an engine pre-loaded with the default templates. store
// may be nil to skip run persistence.
func NewEngine(runner AgentRunner, store domain.FlowRunStore, logger *slog.Logger) *Engine {
	e := &Engine{
		runner:    runner,
		store:     store,
		logger:    logger,
		templates: make(map[string]domain.FlowTemplate),
	}
	for _, t := range DefaultTemplates() {
		e.AddTemplate(t)
	}
	return e
}

// AddTemplate registers or replaces a template.
func (e *Engine) AddTemplate(t domain.FlowTemplate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.templates[t.ID]; !exists {
		e.order = append(e.order, t.ID)
	}
	e.templates[t.ID] = t
}

// Templates lists the registered templates in registration order.
func (e *Engine) Templates() []domain.FlowTemplate {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.FlowTemplate, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.templates[id])
	}
	return out
}

// SelectTemplate makes a template active and resets its runtime steps to
// idle.
func (e *Engine) SelectTemplate(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}
	e.activeID = id
	e.steps = freshSteps(t)
	return nil
}

// Steps returns a snapshot of the active template's runtime steps.
func (e *Engine) Steps() []domain.FlowStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.FlowStep(nil), e.steps...)
}

// Run executes the active template against userInput. The returned run
// record is non-nil whenever execution started; on a step failure it carries
// the error alongside the outputs of the steps that completed.
func (e *Engine) Run(ctx context.Context, userInput string) (*domain.FlowRun, error) {
	e.mu.Lock()
	id := e.activeID
	if id == "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: no template selected", domain.ErrTemplateNotFound)
	}
	steps := freshSteps(e.templates[id])
	e.steps = steps
	e.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "flow.run",
		trace.WithAttributes(
			tracer.StringAttr("template", id),
			tracer.IntAttr("steps", len(steps))))
	defer span.End()

	run := &domain.FlowRun{
		ID:         newRunID(),
		TemplateID: id,
		Status:     domain.StepRunning,
		StartedAt:  time.Now(),
	}
	e.logger.Info("flow run started", "run", run.ID, "template", id)

	prevOutput := ""
	var failed error
	for i := range steps {
		e.updateStep(i, func(s *domain.FlowStep) { s.Status = domain.StepRunning })

		input := stepInput(steps[i], userInput, prevOutput)
		output, err := e.runStep(ctx, steps[i], input)
		if err != nil {
			failed = fmt.Errorf("step %q: %w", steps[i].Title, err)
			e.updateStep(i, func(s *domain.FlowStep) {
				s.Status = domain.StepError
				s.ErrorMessage = err.Error()
			})
			e.logger.Error("flow step failed", "run", run.ID, "step", steps[i].ID, "error", err)
			break
		}

		e.updateStep(i, func(s *domain.FlowStep) {
			s.Status = domain.StepSuccess
			s.OutputFull = output
			s.OutputSummary = summarize(output)
		})
		prevOutput = output
		e.logger.Info("flow step completed", "run", run.ID, "step", steps[i].ID, "output_len", len(output))
	}

	run.Steps = e.Steps()
	run.FinishedAt = time.Now()
	if failed != nil {
		run.Status = domain.StepError
		run.Error = failed.Error()
		tracer.RecordError(span, failed)
	} else {
		run.Status = domain.StepSuccess
		tracer.SetOK(span)
	}

	if e.store != nil {
		if err := e.store.SaveRun(*run); err != nil {
			e.logger.Warn("failed to persist flow run", "run", run.ID, "error", err)
		}
	}
	return run, failed
}

// runStep streams one agent call and gathers its content.
func (e *Engine) runStep(ctx context.Context, step domain.FlowStep, input string) (string, error) {
	ch, err := e.runner.HandleRequestStream(ctx, input, step.AgentType)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for delta := range ch {
		out.WriteString(delta.Content)
		if delta.Err != nil {
			return "", delta.Err
		}
	}
	return out.String(), nil
}

func (e *Engine) updateStep(i int, fn func(*domain.FlowStep)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < len(e.steps) {
		fn(&e.steps[i])
	}
}

// stepInput resolves a step's input text from its source. CustomInput acts
// as an instruction prefix for user and previousStep sources, and as the
// whole input for the custom source. SystemPromptHints, when present, are
// appended as a trailing instruction.
func stepInput(step domain.FlowStep, userInput, prevOutput string) string {
	var input string
	switch step.InputSource {
	case domain.InputPreviousStep:
		src := prevOutput
		if src == "" {
			src = userInput
		}
		input = prefixed(step.CustomInput, src)
	case domain.InputCustom:
		input = step.CustomInput
	default:
		input = prefixed(step.CustomInput, userInput)
	}
	if step.SystemPromptHints != "" {
		input += "\n\n" + step.SystemPromptHints
	}
	return input
}

func prefixed(instruction, body string) string {
	if instruction == "" {
		return body
	}
	return instruction + "\n\n" + body
}

func summarize(output string) string {
	runes := []rune(output)
	if len(runes) <= summaryRunes {
		return output
	}
	return string(runes[:summaryRunes])
}

func freshSteps(t domain.FlowTemplate) []domain.FlowStep {
	steps := append([]domain.FlowStep(nil), t.Steps...)
	for i := range steps {
		steps[i].Status = domain.StepIdle
		steps[i].OutputSummary = ""
		steps[i].OutputFull = ""
		steps[i].ErrorMessage = ""
	}
	return steps
}

func newRunID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
