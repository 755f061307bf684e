package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

const GeminiProviderName = "gemini"

var harmCategories = map[string]genai.HarmCategory{
	"HARM_CATEGORY_HARASSMENT":        genai.HarmCategoryHarassment,
	"HARM_CATEGORY_HATE_SPEECH":       genai.HarmCategoryHateSpeech,
	"HARM_CATEGORY_SEXUALLY_EXPLICIT": genai.HarmCategorySexuallyExplicit,
	"HARM_CATEGORY_DANGEROUS_CONTENT": genai.HarmCategoryDangerousContent,
}

var harmThresholds = map[string]genai.HarmBlockThreshold{
	"BLOCK_NONE":             genai.HarmBlockNone,
	"BLOCK_ONLY_HIGH":        genai.HarmBlockOnlyHigh,
	"BLOCK_MEDIUM_AND_ABOVE": genai.HarmBlockMediumAndAbove,
	"BLOCK_LOW_AND_ABOVE":    genai.HarmBlockLowAndAbove,
}

// GeminiProvider talks to the Gemini API through generative-ai-go.
type GeminiProvider struct {
	client *genai.Client
	logger zerolog.Logger
}

// NewGeminiProvider creates a client for apiKey. baseURL overrides the API
// endpoint when set.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string, logger zerolog.Logger) (*GeminiProvider, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		client: client,
		logger: logger.With().Str("provider", GeminiProviderName).Logger(),
	}, nil
}

func (p *GeminiProvider) Name() string { return GeminiProviderName }

func (p *GeminiProvider) Close() error { return p.client.Close() }

// Generate replays the conversation as chat history and sends its last
// turn. Only the first part of the first candidate is inspected.
func (p *GeminiProvider) Generate(ctx context.Context, in ports.PromptInput, cfg ports.GenerationConfig) (ports.Reply, error) {
	model := p.client.GenerativeModel(cfg.Model)
	if err := configureGeminiModel(model, in, cfg); err != nil {
		return ports.Reply{}, err
	}

	contents, err := geminiContents(in.Turns)
	if err != nil {
		return ports.Reply{}, err
	}
	if len(contents) == 0 {
		return ports.Reply{}, fmt.Errorf("gemini: nothing to send")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	p.logger.Debug().
		Str("model", cfg.Model).
		Int("history", len(cs.History)).
		Int("tools", len(in.Tools)).
		Msg("Sending Gemini request")

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return ports.Reply{}, geminiError(err)
	}
	return geminiReply(resp)
}

func configureGeminiModel(model *genai.GenerativeModel, in ports.PromptInput, cfg ports.GenerationConfig) error {
	temperature := cfg.Temperature
	candidates := cfg.CandidateCount
	if candidates == 0 {
		candidates = 1
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:    &temperature,
		CandidateCount: &candidates,
	}
	if cfg.MaxOutputTokens > 0 {
		maxTokens := cfg.MaxOutputTokens
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}

	for _, s := range cfg.SafetySettings {
		category, ok := harmCategories[s.Category]
		if !ok {
			return fmt.Errorf("gemini: unknown harm category %q", s.Category)
		}
		threshold, ok := harmThresholds[s.Threshold]
		if !ok {
			return fmt.Errorf("gemini: unknown safety threshold %q", s.Threshold)
		}
		model.SafetySettings = append(model.SafetySettings, &genai.SafetySetting{Category: category, Threshold: threshold})
	}

	if in.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(in.System)}}
	}

	if len(in.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(in.Tools))
		for _, spec := range in.Tools {
			params, err := geminiSchema(spec.JSONSchema)
			if err != nil {
				return fmt.Errorf("gemini: tool %s: %w", spec.Name, err)
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return nil
}

// geminiContents maps turns onto Gemini contents. Function results travel
// as FunctionResponse parts in a user-role content; empty model text turns
// are dropped because the API rejects empty parts.
func geminiContents(turns []ports.Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for i, turn := range turns {
		switch turn.Kind() {
		case ports.TurnFunctionCall:
			args, err := turn.FunctionCall.ArgsMap()
			if err != nil {
				return nil, fmt.Errorf("gemini: turn %d: bad function call args: %w", i, err)
			}
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.FunctionCall{Name: turn.FunctionCall.Name, Args: args}},
			})
		case ports.TurnFunctionResult:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     turn.FunctionResult.Name,
					Response: turn.FunctionResult.Payload(),
				}},
			})
		default:
			if turn.Text == "" && turn.Role == ports.RoleModel {
				continue
			}
			role := "user"
			if turn.Role == ports.RoleModel {
				role = "model"
			}
			contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Text)}})
		}
	}
	return contents, nil
}

func geminiReply(resp *genai.GenerateContentResponse) (ports.Reply, error) {
	malformed := func(reason string) (ports.Reply, error) {
		return ports.Reply{}, &harness.MalformedReplyError{Provider: GeminiProviderName, Reason: reason}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			reason += " (prompt blocked: " + resp.PromptFeedback.BlockReason.String() + ")"
		}
		return malformed(reason)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return malformed("candidate has no content (finish reason " + candidate.FinishReason.String() + ")")
	}
	if len(candidate.Content.Parts) == 0 {
		return malformed("candidate content has no parts")
	}

	var reply ports.Reply
	switch part := candidate.Content.Parts[0].(type) {
	case genai.Text:
		reply = ports.TextReply(string(part))
	case genai.FunctionCall:
		args := part.Args
		if args == nil {
			args = map[string]any{}
		}
		encoded, err := json.Marshal(args)
		if err != nil {
			return malformed("function call args are not JSON: " + err.Error())
		}
		reply = ports.FunctionCallReply(ports.ToolCall{ID: uuid.NewString(), Name: part.Name, Args: encoded})
	default:
		return malformed(fmt.Sprintf("unsupported part type %T", part))
	}

	if u := resp.UsageMetadata; u != nil {
		reply.Usage = &ports.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	reply.Raw = resp
	return reply, nil
}

// geminiError maps SDK failures onto GatewayError with an HTTP-style status.
func geminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	statusCode := 0
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
		statusCode = apiErr.HTTPCode()
	} else {
		switch status.Code(err) {
		case codes.ResourceExhausted:
			statusCode = http.StatusTooManyRequests
		case codes.Unauthenticated:
			statusCode = http.StatusUnauthorized
		case codes.PermissionDenied:
			statusCode = http.StatusForbidden
		case codes.InvalidArgument:
			statusCode = http.StatusBadRequest
		case codes.Unavailable:
			statusCode = http.StatusServiceUnavailable
		case codes.Internal:
			statusCode = http.StatusInternalServerError
		}
	}

	// An invalid key is reported as a bad request.
	if statusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "api key") {
		statusCode = http.StatusUnauthorized
	}

	return &harness.GatewayError{Provider: GeminiProviderName, StatusCode: statusCode, Err: err}
}

type jsonSchemaNode struct {
	Type        string                     `json:"type"`
	Description string                     `json:"description"`
	Properties  map[string]*jsonSchemaNode `json:"properties"`
	Required    []string                   `json:"required"`
	Items       *jsonSchemaNode            `json:"items"`
	Enum        []string                   `json:"enum"`
	Format      string                     `json:"format"`
}

// geminiSchema converts a tool's JSON schema into the subset genai.Schema
// supports.
func geminiSchema(raw []byte) (*genai.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var node jsonSchemaNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return convertSchemaNode(&node), nil
}

func convertSchemaNode(n *jsonSchemaNode) *genai.Schema {
	if n == nil {
		return nil
	}
	s := &genai.Schema{
		Description: n.Description,
		Enum:        n.Enum,
		Format:      n.Format,
		Required:    n.Required,
	}
	switch n.Type {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		s.Items = convertSchemaNode(n.Items)
	default:
		s.Type = genai.TypeObject
	}
	if len(n.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for name, prop := range n.Properties {
			s.Properties[name] = convertSchemaNode(prop)
		}
	}
	return s
}

var _ ports.Provider = (*GeminiProvider)(nil)
