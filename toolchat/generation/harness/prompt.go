package harness

import (
	"strings"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// PromptBuilder assembles model-ready inputs from the system instruction,
// a conversation snapshot and the tool declarations.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build copies the conversation into a PromptInput. Turn content is passed
// through untouched; only the system instruction is normalized.
func (b *PromptBuilder) Build(system string, conv *Conversation, toolSpecs []ports.ToolSpec, meta map[string]string) ports.PromptInput {
	return ports.PromptInput{
		System: strings.TrimSpace(strings.ReplaceAll(system, "\r\n", "\n")),
		Turns:  conv.Turns(),
		Tools:  append([]ports.ToolSpec(nil), toolSpecs...),
		Meta:   meta,
	}
}
