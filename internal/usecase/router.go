package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"promptmatrix/internal/domain"
	"promptmatrix/internal/infra/tracer"
)

// HistoryStore persists the conversation across sessions. A nil store keeps
// history in memory only.
type HistoryStore interface {
	Load() ([]domain.Message, error)
	Save(msgs []domain.Message) error
}

// RouterOptions tunes router construction.
type RouterOptions struct {
	// MaxHistory caps the retained conversation length; older turns are
	// dropped first. Zero means the default of 50.
	MaxHistory int
	// Config is the provider configuration handed to custom agents as
	// per-call options.
	Config domain.ProviderConfig
	Store  HistoryStore
	Guard  *TokenGuard
}

const defaultMaxHistory = 50

// Router dispatches each user request to an agent: forced selection when the
// caller names one, otherwise the conductor's routing decision. It owns the
// conversation history.
type Router struct {
	conductor *Conductor
	registry  *Registry
	client    CompletionClient
	executors map[domain.AgentType]executor

	mu      sync.Mutex
	history []domain.Message

	maxHistory int
	config     domain.ProviderConfig
	store      HistoryStore
	guard      *TokenGuard
	logger     *slog.Logger
}

// NewRouter wires the conductor, registry, and completion client into a
// router with the built-in executors registered. Persisted history, if any,
// is loaded immediately.
func NewRouter(conductor *Conductor, registry *Registry, client CompletionClient, opts RouterOptions, logger *slog.Logger) *Router {
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}

	r := &Router{
		conductor:  conductor,
		registry:   registry,
		client:     client,
		executors:  make(map[domain.AgentType]executor),
		maxHistory: maxHistory,
		config:     opts.Config,
		store:      opts.Store,
		guard:      opts.Guard,
		logger:     logger,
	}

	r.executors[domain.AgentConductor] = &conductorAgent{client: client, logger: logger}
	r.executors[domain.AgentX0Optimizer] = &expertAgent{
		id: domain.AgentX0Optimizer, registry: registry, client: client,
		buildPrompt: optimizerUserPrompt, suggestions: optimizerSuggestions, logger: logger,
	}
	r.executors[domain.AgentX0Reverse] = &expertAgent{
		id: domain.AgentX0Reverse, registry: registry, client: client,
		buildPrompt: reverseUserPrompt, suggestions: reverseSuggestions, logger: logger,
	}
	r.executors[domain.AgentX1Basic] = &expertAgent{
		id: domain.AgentX1Basic, registry: registry, client: client,
		buildPrompt: basicUserPrompt, suggestions: basicSuggestions, logger: logger,
	}
	r.executors[domain.AgentX4Scenario] = &expertAgent{
		id: domain.AgentX4Scenario, registry: registry, client: client,
		buildPrompt: scenarioUserPrompt, suggestions: scenarioSuggestions, logger: logger,
	}

	if r.store != nil {
		msgs, err := r.store.Load()
		if err != nil {
			logger.Warn("failed to load persisted history", "error", err)
		} else if len(msgs) > 0 {
			r.history = trimHistory(msgs, r.maxHistory)
			logger.Info("conversation history restored", "messages", len(r.history))
		}
	}

	return r
}

// RegisterCustomAgent registers a user-defined agent under its normalized
// id. An id that normalizes to empty is silently ignored.
func (r *Router) RegisterCustomAgent(cfg domain.CustomAgentConfig) {
	id := domain.NormalizeCustomID(cfg.ID)
	if id == "" {
		r.logger.Warn("custom agent registration skipped: empty id", "raw_id", cfg.ID)
		return
	}
	cfg.ID = string(id)

	name := cfg.Name
	if name == "" {
		name = customDisplayName(id)
	}

	r.registry.Register(domain.AgentDescriptor{
		ID:           id,
		SystemPrompt: cfg.Prompt,
		DisplayName:  name,
	})

	r.mu.Lock()
	r.executors[id] = &customAgent{cfg: cfg, client: r.client, logger: r.logger}
	r.mu.Unlock()

	r.logger.Info("custom agent registered", "agent", string(id), "name", name)
}

// ListAgents returns the registered agent descriptors in registration order.
func (r *Router) ListAgents() []domain.AgentDescriptor {
	return r.registry.List()
}

// resolve produces the routing decision and the executor for one request.
// Nothing is mutated on failure.
func (r *Router) resolve(input string, forced domain.AgentType, history []domain.Message) (domain.RoutingDecision, executor, error) {
	var decision domain.RoutingDecision
	if forced != "" {
		target := domain.NormalizeCustomID(string(forced))
		decision = domain.RoutingDecision{
			Intent:      domain.IntentChat,
			TargetAgent: target,
			Confidence:  1.0,
			Reasoning:   "Forced by user selection",
		}
	} else {
		rc := domain.RequestContext{UserInput: input, History: history, Config: r.config}
		intent := r.conductor.AnalyzeIntent(input, history)
		decision = r.conductor.MakeRoutingDecision(intent, rc)
	}

	r.mu.Lock()
	exec, ok := r.executors[decision.TargetAgent]
	r.mu.Unlock()
	if !ok {
		return decision, nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, decision.TargetAgent)
	}
	return decision, exec, nil
}

// HandleRequest routes the input and runs the selected agent to completion.
func (r *Router) HandleRequest(ctx context.Context, input string, forced domain.AgentType) (*domain.AgentResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "router.handle_request",
		trace.WithAttributes(tracer.StringAttr("forced_agent", string(forced))))
	defer span.End()

	r.mu.Lock()
	snapshot := append([]domain.Message(nil), r.history...)
	r.mu.Unlock()

	decision, exec, err := r.resolve(input, forced, snapshot)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	r.guard.Check(snapshot, input)

	rc := domain.RequestContext{
		UserInput:   input,
		History:     snapshot,
		Config:      r.config,
		ForcedAgent: forced,
	}

	result, err := exec.Execute(ctx, rc)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp(r.displayName(decision.TargetAgent), err)
	}

	// Both turns are recorded together, only once the agent has answered.
	// A failed request leaves the history exactly as it was.
	now := time.Now()
	r.appendHistory(
		domain.Message{Role: domain.RoleUser, Content: input, Timestamp: now},
		domain.Message{Role: domain.RoleAssistant, Content: result.Content, Timestamp: now},
	)

	tracer.SetOK(span)
	return &domain.AgentResponse{
		AgentType: decision.TargetAgent,
		Content:   result.Content,
		Intent:    decision.Intent,
		Metadata: domain.ResponseMetadata{
			TokensUsed:      result.TokensUsed,
			ThinkingProcess: decision.Reasoning,
			Suggestions:     result.Suggestions,
		},
		Timestamp: time.Now(),
	}, nil
}

// HandleRequestStream routes the input and streams the selected agent's
// response. The channel first carries routing narration as Thinking deltas,
// then the agent's own deltas; a final Done delta closes the exchange.
// Resolution and stream setup errors are returned synchronously; a failure
// after streaming began arrives as a terminal delta with Err set.
func (r *Router) HandleRequestStream(ctx context.Context, input string, forced domain.AgentType) (<-chan domain.StreamDelta, error) {
	ctx, span := tracer.StartSpan(ctx, "router.handle_request_stream",
		trace.WithAttributes(tracer.StringAttr("forced_agent", string(forced))))

	r.mu.Lock()
	snapshot := append([]domain.Message(nil), r.history...)
	r.mu.Unlock()

	decision, exec, err := r.resolve(input, forced, snapshot)
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		return nil, err
	}
	r.guard.Check(snapshot, input)

	rc := domain.RequestContext{
		UserInput:   input,
		History:     snapshot,
		Config:      r.config,
		ForcedAgent: forced,
	}

	inner, err := exec.ExecuteStream(ctx, rc)
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		return nil, domain.WrapOp(r.displayName(decision.TargetAgent), err)
	}

	r.appendHistory(domain.Message{Role: domain.RoleUser, Content: input, Timestamp: time.Now()})

	name := r.displayName(decision.TargetAgent)
	out := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(out)
		defer span.End()

		out <- domain.StreamDelta{Thinking: "🔍 **意图分析**\n正在解析您的需求..."}
		out <- domain.StreamDelta{Thinking: fmt.Sprintf(
			"🎯 **意图识别**：%s\n\n🤔 **路由决策**\n正在选择最合适的专家Agent...", decision.Intent)}
		out <- domain.StreamDelta{Thinking: fmt.Sprintf(
			"✅ **专家选择**：%s\n\n**📋 决策依据**：%s\n\n🚀 **开始处理**\n%s正在为您生成专业的回答...",
			name, decision.Reasoning, name)}

		var content strings.Builder
		var streamErr error
		var usage *domain.Usage
		for delta := range inner {
			content.WriteString(delta.Content)
			if delta.Err != nil && streamErr == nil {
				streamErr = delta.Err
			}
			if delta.Usage != nil {
				usage = delta.Usage
			}
			if delta.Done {
				// The terminal delta may still carry a trailing fragment.
				if delta.Content != "" || delta.Thinking != "" {
					out <- domain.StreamDelta{Content: delta.Content, Thinking: delta.Thinking}
				}
				break
			}
			out <- delta
		}

		if streamErr != nil {
			// A dropped stream records no assistant turn; the consumer
			// gets the error on the terminal delta.
			tracer.RecordError(span, streamErr)
			r.logger.Error("stream failed mid-response",
				"agent", string(decision.TargetAgent), "error", streamErr)
			out <- domain.StreamDelta{Err: streamErr, Done: true}
			return
		}

		r.appendHistory(domain.Message{
			Role: domain.RoleAssistant, Content: content.String(), Timestamp: time.Now(),
		})
		tracer.SetOK(span)
		out <- domain.StreamDelta{Done: true, Usage: usage}
	}()

	return out, nil
}

// AddHistoryMessage appends one turn to the conversation.
func (r *Router) AddHistoryMessage(role, content string) {
	r.appendHistory(domain.Message{Role: role, Content: content, Timestamp: time.Now()})
}

// GetHistory returns a snapshot of the conversation.
func (r *Router) GetHistory() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.history...)
}

// ClearHistory drops the conversation and its persisted copy.
func (r *Router) ClearHistory() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
	r.persist(nil)
}

func (r *Router) appendHistory(msgs ...domain.Message) {
	r.mu.Lock()
	r.history = trimHistory(append(r.history, msgs...), r.maxHistory)
	snapshot := append([]domain.Message(nil), r.history...)
	r.mu.Unlock()
	r.persist(snapshot)
}

func (r *Router) persist(msgs []domain.Message) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(msgs); err != nil {
		r.logger.Warn("failed to persist history", "error", err)
	}
}

func (r *Router) displayName(id domain.AgentType) string {
	if name, ok := builtinDisplayNames[id]; ok {
		return name
	}
	if desc, err := r.registry.Get(id); err == nil && desc.DisplayName != "" {
		return desc.DisplayName
	}
	return customDisplayName(id)
}

func customDisplayName(id domain.AgentType) string {
	suffix := strings.TrimPrefix(string(id), "CUSTOM_")
	return "自定义工程师 " + suffix
}

func trimHistory(msgs []domain.Message, max int) []domain.Message {
	if len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}
