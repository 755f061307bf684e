package harnessports

import (
	"context"
)

// PromptInput aggregates everything the provider needs to produce a reply.
type PromptInput struct {
	System string            // system instruction
	Turns  []Turn            // ordered conversation snapshot
	Tools  []ToolSpec        // tool declarations available to the model
	Meta   map[string]string // lightweight metadata for tracing
}

// SafetySetting maps a harm category to a blocking threshold, using the
// Gemini names (e.g. HARM_CATEGORY_HARASSMENT / BLOCK_NONE).
type SafetySetting struct {
	Category  string
	Threshold string
}

// GenerationConfig is fixed for a session.
type GenerationConfig struct {
	Model             string
	Temperature       float32
	MaxOutputTokens   int32
	CandidateCount    int32
	SafetySettings    []SafetySetting
	SystemInstruction string
}

// Usage captures token accounting for telemetry.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ReplyKind tags a Reply.
type ReplyKind int

const (
	ReplyText ReplyKind = iota
	ReplyFunctionCall
)

func (k ReplyKind) String() string {
	if k == ReplyFunctionCall {
		return "function_call"
	}
	return "text"
}

// Reply is the first part of the first candidate of a model response:
// either text or a single function call.
type Reply struct {
	Kind         ReplyKind
	Text         string
	FunctionCall *ToolCall
	Usage        *Usage
	Raw          any // raw provider payload for debugging
}

func TextReply(text string) Reply { return Reply{Kind: ReplyText, Text: text} }

func FunctionCallReply(call ToolCall) Reply {
	return Reply{Kind: ReplyFunctionCall, FunctionCall: &call}
}

// Provider is the model gateway: one blocking call, no retries.
type Provider interface {
	Name() string
	Generate(ctx context.Context, in PromptInput, cfg GenerationConfig) (Reply, error)
}
