package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

const OpenAIProviderName = "openai"

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	logger zerolog.Logger
}

func NewOpenAIProvider(apiKey, baseURL string, logger zerolog.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With().Str("provider", OpenAIProviderName).Logger(),
	}
}

func (p *OpenAIProvider) Name() string { return OpenAIProviderName }

func (p *OpenAIProvider) Generate(ctx context.Context, in ports.PromptInput, cfg ports.GenerationConfig) (ports.Reply, error) {
	messages, err := openAIMessages(in)
	if err != nil {
		return ports.Reply{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   int(cfg.MaxOutputTokens),
		N:           1,
		Tools:       openAITools(in.Tools),
	}

	p.logger.Debug().
		Str("model", cfg.Model).
		Int("messages", len(messages)).
		Int("tools", len(req.Tools)).
		Msg("Sending chat completion request")

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ports.Reply{}, openAIError(err)
	}
	return openAIReply(resp)
}

// openAIMessages maps turns onto chat messages. A function call becomes an
// assistant message carrying tool_calls and its result a tool message
// keyed by the call id.
func openAIMessages(in ports.PromptInput) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(in.Turns)+1)
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: in.System})
	}
	for i, turn := range in.Turns {
		switch turn.Kind() {
		case ports.TurnFunctionCall:
			call := turn.FunctionCall
			if call.ID == "" {
				return nil, fmt.Errorf("openai: turn %d: function call %s has no id", i, call.Name)
			}
			args := string(call.Args)
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       call.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: call.Name, Arguments: args},
				}},
			})
		case ports.TurnFunctionResult:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    turn.FunctionResult.Content(),
				ToolCallID: turn.FunctionResult.CallID,
			})
		default:
			if turn.Role == ports.RoleModel {
				if turn.Text == "" {
					continue
				}
				messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Text})
				continue
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Text})
		}
	}
	return messages, nil
}

func openAITools(specs []ports.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		def := &openai.FunctionDefinition{Name: spec.Name, Description: spec.Description}
		if len(spec.JSONSchema) > 0 {
			def.Parameters = json.RawMessage(spec.JSONSchema)
		}
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: def})
	}
	return tools
}

func openAIReply(resp openai.ChatCompletionResponse) (ports.Reply, error) {
	malformed := func(reason string) (ports.Reply, error) {
		return ports.Reply{}, &harness.MalformedReplyError{Provider: OpenAIProviderName, Reason: reason}
	}
	if len(resp.Choices) == 0 {
		return malformed("no choices")
	}
	msg := resp.Choices[0].Message

	var reply ports.Reply
	switch {
	case len(msg.ToolCalls) > 0:
		tc := msg.ToolCalls[0]
		if tc.Function.Name == "" {
			return malformed("tool call has no function name")
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return malformed("tool call arguments are not valid JSON")
		}
		reply = ports.FunctionCallReply(ports.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: json.RawMessage(args)})
	case msg.FunctionCall != nil:
		return malformed("legacy function_call replies are not supported")
	default:
		reply = ports.TextReply(msg.Content)
	}

	reply.Usage = &ports.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	reply.Raw = resp
	return reply, nil
}

func openAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	statusCode := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	}
	return &harness.GatewayError{Provider: OpenAIProviderName, StatusCode: statusCode, Err: err}
}

var _ ports.Provider = (*OpenAIProvider)(nil)
