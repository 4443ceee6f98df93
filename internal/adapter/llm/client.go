package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"promptmatrix/internal/domain"
	"promptmatrix/internal/infra/config"
	"promptmatrix/internal/infra/tracer"
)

// Default generation parameters, applied when neither the call options nor
// the active config set a value.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	defaultTopP        = 0.95

	// Gemini's OpenAI-compatible endpoint rejects larger budgets.
	geminiMaxTokensCap = 8192
)

// session is an immutable snapshot of a resolved provider configuration.
// Initialize builds a new one wholesale; in-flight calls keep using the
// session they started with.
type session struct {
	provider        domain.Provider
	baseURL         string
	apiKey          string
	model           string
	temperature     *float64
	maxTokens       int
	topP            *float64
	reasoningTokens int
	client          *http.Client
}

// Client calls an OpenAI-compatible chat completions endpoint. It is safe
// for concurrent use; all calls fail with domain.ErrNotInitialized until
// Initialize has been called with a valid provider config.
type Client struct {
	mu        sync.RWMutex
	session   *session
	transport config.LLMConfig
	directory domain.ProviderDirectory
	breaker   *chatBreaker
	logger    *slog.Logger
}

// NewClient creates an uninitialized client. directory may be nil when no
// custom providers are configured.
func NewClient(transport config.LLMConfig, directory domain.ProviderDirectory, logger *slog.Logger) *Client {
	c := &Client{
		transport: transport,
		directory: directory,
		logger:    logger,
	}
	if transport.Breaker.Enabled {
		c.breaker = newChatBreaker(transport.Breaker, logger)
	}
	return c
}

// Initialize resolves cfg into an active session, replacing any previous
// one. Custom providers are resolved through the directory.
func (c *Client) Initialize(cfg domain.ProviderConfig) error {
	if !cfg.Provider.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, cfg.Provider)
	}

	s := &session{
		provider:        cfg.Provider,
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		topP:            cfg.TopP,
		reasoningTokens: cfg.ReasoningTokens,
	}

	if cfg.Provider == domain.ProviderCustom {
		if c.directory == nil {
			return fmt.Errorf("%w: %q", domain.ErrProviderNotFound, cfg.CustomProviderID)
		}
		cp, ok := c.directory.Get(cfg.CustomProviderID)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrProviderNotFound, cfg.CustomProviderID)
		}
		s.baseURL = strings.TrimRight(cp.BaseURL, "/")
		if s.apiKey == "" {
			s.apiKey = cp.APIKey
		}
		if s.temperature == nil {
			s.temperature = cp.Temperature
		}
		if s.maxTokens == 0 {
			s.maxTokens = cp.MaxTokens
		}
		if s.topP == nil {
			s.topP = cp.TopP
		}
		if s.model == "" && len(cp.Models) > 0 {
			s.model = cp.Models[0]
		}
	} else {
		s.baseURL = config.NormalizeBaseURL(cfg.Provider, cfg.BaseURL)
	}

	s.client = NewHTTPClient(c.transport)
	if cfg.Provider == domain.ProviderOpenRouter {
		s.client.Transport = &openrouterTransport{base: s.client.Transport}
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	c.logger.Info("completion client initialized",
		"provider", string(s.provider),
		"model", s.model,
		"base_url", s.baseURL,
	)
	return nil
}

// IsInitialized reports whether Initialize has succeeded at least once.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

func (c *Client) current() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, domain.ErrNotInitialized
	}
	return c.session, nil
}

// buildRequest merges per-call options over the session config over the
// built-in defaults.
func (s *session) buildRequest(messages []domain.Message, opts *domain.ChatOptions) chatRequest {
	if opts == nil {
		opts = &domain.ChatOptions{}
	}

	model := opts.Model
	if model == "" {
		model = s.model
	}

	temp := opts.Temperature
	if temp == nil {
		temp = s.temperature
	}
	if temp == nil {
		v := defaultTemperature
		temp = &v
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if s.provider == domain.ProviderGemini && maxTokens > geminiMaxTokensCap {
		maxTokens = geminiMaxTokensCap
	}

	topP := opts.TopP
	if topP == nil {
		topP = s.topP
	}
	if topP == nil {
		v := defaultTopP
		topP = &v
	}

	req := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: temp,
		MaxTokens:   maxTokens,
		TopP:        topP,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	reasoning := opts.ReasoningTokens
	if reasoning == 0 {
		reasoning = s.reasoningTokens
	}
	if reasoning > 0 && s.provider == domain.ProviderOpenRouter {
		req.Reasoning = &reasoningOptions{MaxTokens: reasoning}
	}

	return req
}

func (s *session) headers() map[string]string {
	h := map[string]string{}
	if s.apiKey != "" {
		h["Authorization"] = "Bearer " + s.apiKey
	}
	return h
}

// Chat performs a blocking completion over the full message array.
func (c *Client) Chat(ctx context.Context, messages []domain.Message, opts *domain.ChatOptions) (*domain.ChatResult, error) {
	s, err := c.current()
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}

	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", string(s.provider)),
			tracer.StringAttr("llm.model", s.model),
		),
	)
	defer span.End()

	result, err := c.execute(ctx, s, messages, opts)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}

	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", result.Usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", result.Usage.CompletionTokens),
	)
	tracer.SetOK(span)
	c.logger.Debug("llm chat completed",
		"provider", string(s.provider),
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
	)
	return result, nil
}

// execute runs the HTTP round trip, through the circuit breaker when one is
// configured.
func (c *Client) execute(ctx context.Context, s *session, messages []domain.Message, opts *domain.ChatOptions) (*domain.ChatResult, error) {
	call := func() (*domain.ChatResult, error) {
		return s.chat(ctx, messages, opts)
	}
	if c.breaker != nil {
		return c.breaker.execute(string(s.provider), call)
	}
	return call()
}

func (s *session) chat(ctx context.Context, messages []domain.Message, opts *domain.ChatOptions) (*domain.ChatResult, error) {
	body, err := json.Marshal(s.buildRequest(messages, opts))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, s.client, s.baseURL+"/chat/completions", body, s.headers())
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	// No choices is an empty completion, not a failure.
	var content, thinking string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		thinking = resp.Choices[0].Message.ReasoningContent
	}

	return &domain.ChatResult{
		Content:  content,
		Thinking: thinking,
		Model:    resp.Model,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream performs a streaming completion. Content and thinking deltas
// arrive on the returned channel; the channel closes after the final delta.
func (c *Client) ChatStream(ctx context.Context, messages []domain.Message, opts *domain.ChatOptions) (<-chan domain.StreamDelta, error) {
	s, err := c.current()
	if err != nil {
		return nil, fmt.Errorf("LLM stream failed: %w", err)
	}

	req := s.buildRequest(messages, opts)
	req.Stream = true
	req.StreamOptions = &streamOptions{IncludeUsage: true}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("LLM stream failed: marshal request: %w", err)
	}

	httpResp, err := doStreamRequest(ctx, s.client, s.baseURL+"/chat/completions", body, s.headers())
	if err != nil {
		return nil, fmt.Errorf("LLM stream failed: %w", err)
	}

	ch := parseSSEStream(ctx, httpResp.Body, func(data []byte) (*domain.StreamDelta, error) {
		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, err
		}

		delta := &domain.StreamDelta{}
		if len(chunk.Choices) > 0 {
			ch := chunk.Choices[0]
			delta.Content = ch.Delta.Content
			delta.Thinking = ch.Delta.ReasoningContent
			if ch.FinishReason != nil && *ch.FinishReason != "" {
				delta.Done = true
			}
		}
		if chunk.Usage != nil {
			delta.Usage = &domain.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		return delta, nil
	})

	return ch, nil
}

// ListModels fetches the ids available at the provider's /models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	s, err := c.current()
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}

	respBody, err := doGETRequest(ctx, s.client, s.baseURL+"/models", s.headers())
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}

	var resp modelsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("LLM request failed: unmarshal response: %w", err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// TestConnection verifies the active config can reach the provider. It uses
// a short deadline so interactive callers get a prompt answer.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err
}
