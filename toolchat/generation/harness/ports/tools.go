package harnessports

import (
	"bytes"
	"context"
	"encoding/json"
)

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string // unique logical name
	Description string // concise doc for model selection
	JSONSchema  []byte // JSON schema for args
}

// ToolCall represents a model-invoked function with JSON object arguments.
type ToolCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Clone returns a copy that shares no memory with c.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Args != nil {
		out.Args = append(json.RawMessage(nil), c.Args...)
	}
	return out
}

// Equal compares name, id and argument bytes.
func (c ToolCall) Equal(other ToolCall) bool {
	return c.ID == other.ID && c.Name == other.Name && bytes.Equal(c.Args, other.Args)
}

// ArgsMap decodes the arguments into a generic map; empty args yield an empty map.
func (c ToolCall) ArgsMap() (map[string]any, error) {
	args := map[string]any{}
	if len(bytes.TrimSpace(c.Args)) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(c.Args, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolResult is the normalized outcome of executing a ToolCall.
type ToolResult struct {
	CallID string          `json:"call_id,omitempty"`
	Name   string          `json:"name"`
	Value  any             `json:"-"`                // typed value returned by the tool
	JSON   json.RawMessage `json:"result,omitempty"` // JSON encoding of Value
	Error  string          `json:"error,omitempty"`  // set when execution failed
}

func (r ToolResult) IsError() bool { return r.Error != "" }

// Payload renders the result as the JSON object handed back to the model.
// Objects are passed through; other values are wrapped under "result";
// failures become {"error": message}.
func (r ToolResult) Payload() map[string]any {
	if r.IsError() {
		return map[string]any{"error": r.Error}
	}
	var obj map[string]any
	if len(r.JSON) > 0 && json.Unmarshal(r.JSON, &obj) == nil && obj != nil {
		return obj
	}
	var v any
	if len(r.JSON) > 0 && json.Unmarshal(r.JSON, &v) == nil {
		return map[string]any{"result": v}
	}
	return map[string]any{"result": r.Value}
}

// Content renders the result as a string for providers that take text tool outputs.
func (r ToolResult) Content() string {
	if r.IsError() {
		b, _ := json.Marshal(map[string]string{"error": r.Error})
		return string(b)
	}
	return string(r.JSON)
}

// Tool defines the runtime that executes a tool call.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}
