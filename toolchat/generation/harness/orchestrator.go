package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// Policy controls orchestration behavior.
type Policy struct {
	ToolTimeout    time.Duration // per-tool timeout
	GatewayTimeout time.Duration // per model call
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		ToolTimeout:    30 * time.Second,
		GatewayTimeout: 60 * time.Second,
	}
}

// Response is the outcome of one user turn.
type Response struct {
	Text       string
	ToolCall   *ports.ToolCall   // set when the model requested a function
	ToolResult *ports.ToolResult // result fed back for ToolCall
	ModelCalls int
	Usage      *ports.Usage
}

// Orchestrator runs the single-round tool-calling loop: one model call, and
// when that call asks for a function, one execution and one follow-up call.
type Orchestrator struct {
	provider ports.Provider
	registry *Registry
	executor *Executor
	builder  *PromptBuilder
	store    ports.ConversationStore
	limiter  ports.RateLimiter
	tracer   ports.Tracer
	config   ports.GenerationConfig
	policy   *Policy
}

// NewOrchestrator creates a new orchestrator with dependencies. Nil
// adapters fall back to no-ops.
func NewOrchestrator(
	provider ports.Provider,
	registry *Registry,
	executor *Executor,
	builder *PromptBuilder,
	store ports.ConversationStore,
	limiter ports.RateLimiter,
	tracer ports.Tracer,
	config ports.GenerationConfig,
	policy *Policy,
) *Orchestrator {
	if registry == nil {
		registry = &Registry{}
	}
	if builder == nil {
		builder = NewPromptBuilder()
	}
	if store == nil {
		store = &noOpStore{}
	}
	if limiter == nil {
		limiter = &noOpRateLimiter{}
	}
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	if executor == nil {
		executor = NewExecutor(registry, tracer, policy.ToolTimeout)
	}
	return &Orchestrator{
		provider: provider,
		registry: registry,
		executor: executor,
		builder:  builder,
		store:    store,
		limiter:  limiter,
		tracer:   tracer,
		config:   config,
		policy:   policy,
	}
}

// Provider returns the model gateway in use.
func (o *Orchestrator) Provider() ports.Provider { return o.provider }

// Registry returns the tools advertised to the model.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Store returns the transcript store.
func (o *Orchestrator) Store() ports.ConversationStore { return o.store }

// Step appends userText to conv, drives the model through at most one tool
// round and returns the final answer. A text reply adds two turns, a
// function call adds four. Turns appended before a failure stay in conv.
func (o *Orchestrator) Step(ctx context.Context, conv *Conversation, userText string) (*Response, error) {
	if o.provider == nil {
		return nil, errors.New("orchestrator has no provider")
	}

	release, err := o.limiter.Acquire(ctx, "step")
	if err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	defer release()

	ctx, finish := o.tracer.StartSpan(ctx, "step", map[string]any{
		"conversation_id": conv.ID,
		"provider":        o.provider.Name(),
		"tool_count":      len(o.registry.order),
	})

	start := conv.Len()
	resp, err := o.step(ctx, conv, userText)
	o.persist(ctx, conv, start)

	finish(err)
	return resp, err
}

func (o *Orchestrator) step(ctx context.Context, conv *Conversation, userText string) (*Response, error) {
	resp := &Response{}
	conv.Append(ports.NewUserTurn(userText))

	reply, err := o.generate(ctx, conv, resp)
	if err != nil {
		return nil, err
	}
	if reply.Kind == ports.ReplyText {
		conv.Append(ports.NewModelTextTurn(reply.Text))
		resp.Text = reply.Text
		return resp, nil
	}

	call := reply.FunctionCall.Clone()
	conv.Append(ports.NewFunctionCallTurn(call))

	result := o.executor.Execute(ctx, call)
	conv.Append(ports.NewFunctionResultTurn(result))
	resp.ToolCall = &call
	resp.ToolResult = &result
	if result.IsError() {
		o.tracer.Event(ctx, "tool_error", map[string]any{"tool": call.Name, "error": result.Error})
	}

	reply, err = o.generate(ctx, conv, resp)
	if err != nil {
		return nil, err
	}

	text := reply.Text
	if reply.Kind == ports.ReplyFunctionCall {
		// Only one tool round per user turn.
		o.tracer.Event(ctx, "tool_round_exhausted", map[string]any{"tool": reply.FunctionCall.Name})
		text = ""
	}
	conv.Append(ports.NewModelTextTurn(text))
	resp.Text = text
	return resp, nil
}

// generate sends the current conversation to the provider under the
// gateway timeout.
func (o *Orchestrator) generate(ctx context.Context, conv *Conversation, resp *Response) (ports.Reply, error) {
	prompt := o.builder.Build(o.config.SystemInstruction, conv, o.registry.Declarations(), map[string]string{
		"conversation_id": conv.ID,
	})

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.policy.GatewayTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.policy.GatewayTimeout)
	}
	defer cancel()

	resp.ModelCalls++
	callCtx, spanFinish := o.tracer.StartSpan(callCtx, "provider_call", map[string]any{
		"call":  resp.ModelCalls,
		"turns": len(prompt.Turns),
	})
	reply, err := o.provider.Generate(callCtx, prompt, o.config)
	if err == nil && reply.Kind == ports.ReplyFunctionCall && reply.FunctionCall == nil {
		err = &MalformedReplyError{Provider: o.provider.Name(), Reason: "function call reply without a call"}
	}
	if err != nil {
		err = o.gatewayError(ctx, callCtx, err)
	}
	spanFinish(err)

	if err != nil {
		return ports.Reply{}, fmt.Errorf("model call %d failed: %w", resp.ModelCalls, err)
	}

	resp.Usage = addUsage(resp.Usage, reply.Usage)
	return reply, nil
}

// gatewayError normalizes provider failures so callers can rely on
// IsTurnFailure.
func (o *Orchestrator) gatewayError(parent, callCtx context.Context, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return &GatewayError{
			Provider: o.provider.Name(),
			Err:      &TimeoutError{Op: o.provider.Name() + " generate", After: o.policy.GatewayTimeout},
		}
	}
	if IsTurnFailure(err) {
		return err
	}
	return &GatewayError{Provider: o.provider.Name(), Err: err}
}

// persist saves the turns appended since index start. Store failures are
// reported but never fail the step.
func (o *Orchestrator) persist(ctx context.Context, conv *Conversation, start int) {
	// The step context may already be cancelled; the transcript still gets written.
	saveCtx := context.WithoutCancel(ctx)
	for _, turn := range conv.Since(start) {
		if err := o.store.SaveTurn(saveCtx, conv.ID, turn); err != nil {
			o.tracer.Event(ctx, "store_error", map[string]any{"error": err.Error()})
			return
		}
	}
}

func addUsage(total, u *ports.Usage) *ports.Usage {
	if u == nil {
		return total
	}
	if total == nil {
		total = &ports.Usage{}
	}
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
	return total
}
