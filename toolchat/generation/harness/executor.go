package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/sourcegraph/conc/panics"
)

// Executor dispatches a model-issued call to the registered tool and always
// produces a ToolResult: failures, panics and timeouts become error results
// so the conversation can carry them back to the model.
type Executor struct {
	registry *Registry
	tracer   ports.Tracer
	timeout  time.Duration
}

// NewExecutor creates an executor. A zero timeout leaves calls bounded only
// by the caller's context.
func NewExecutor(registry *Registry, tracer ports.Tracer, timeout time.Duration) *Executor {
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	return &Executor{registry: registry, tracer: tracer, timeout: timeout}
}

type invocation struct {
	value any
	err   error
}

// Execute runs call and returns its result.
func (e *Executor) Execute(ctx context.Context, call ports.ToolCall) ports.ToolResult {
	ctx, finish := e.tracer.StartSpan(ctx, "tool_execute", map[string]any{
		"tool":    call.Name,
		"call_id": call.ID,
	})

	result := ports.ToolResult{CallID: call.ID, Name: call.Name}

	value, err := e.invoke(ctx, call)
	if err == nil {
		encoded, mErr := json.Marshal(value)
		if mErr != nil {
			err = &ToolExecutionError{Name: call.Name, Err: fmt.Errorf("result is not JSON-encodable: %w", mErr)}
		} else {
			result.Value = value
			result.JSON = encoded
		}
	}
	if err != nil {
		result.Error = errorMessage(err)
	}

	finish(err)
	return result
}

func (e *Executor) invoke(ctx context.Context, call ports.ToolCall) (any, error) {
	tool, err := e.registry.Resolve(call.Name)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		var pc panics.Catcher
		var out invocation
		pc.Try(func() { out.value, out.err = tool.Invoke(callCtx, call.Args) })
		if r := pc.Recovered(); r != nil {
			out = invocation{err: r.AsError()}
		}
		done <- out
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, &ToolExecutionError{Name: call.Name, Err: out.err}
		}
		return out.value, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Op: "Function " + call.Name, After: e.timeout}
		}
		return nil, &ToolExecutionError{Name: call.Name, Err: callCtx.Err()}
	}
}

// errorMessage keeps the tool's own wording in the result handed to the model.
func errorMessage(err error) string {
	var execErr *ToolExecutionError
	if errors.As(err, &execErr) && execErr.Err != nil {
		return execErr.Err.Error()
	}
	return err.Error()
}
