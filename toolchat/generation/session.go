// Package generation ties the orchestration loop to a single chat session.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// Generator answers one user message at a time.
type Generator interface {
	Send(ctx context.Context, userText string) (*harness.Response, error)
}

// Session owns one Conversation and serializes steps against it.
type Session struct {
	mu           sync.Mutex
	orchestrator *harness.Orchestrator
	conv         *harness.Conversation
	logger       zerolog.Logger
}

// NewSession starts a fresh conversation.
func NewSession(orchestrator *harness.Orchestrator, logger zerolog.Logger) *Session {
	conv := harness.NewConversation()
	return &Session{
		orchestrator: orchestrator,
		conv:         conv,
		logger:       logger.With().Str("conversation_id", conv.ID).Logger(),
	}
}

// ResumeSession reloads the last k turns of conversationID from the
// orchestrator's store. k <= 0 loads everything.
func ResumeSession(ctx context.Context, orchestrator *harness.Orchestrator, conversationID string, k int, logger zerolog.Logger) (*Session, error) {
	turns, err := orchestrator.Store().LoadContext(ctx, conversationID, k)
	if err != nil {
		if errors.Is(err, ports.ErrHistoryUnsupported) {
			return nil, fmt.Errorf("cannot resume %s: %w", conversationID, err)
		}
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("conversation %s has no stored turns", conversationID)
	}

	conv := harness.RestoreConversation(conversationID, turns)
	l := logger.With().Str("conversation_id", conversationID).Logger()
	l.Debug().Int("loaded", len(turns)).Int("kept", conv.Len()).Msg("Resumed conversation")

	return &Session{orchestrator: orchestrator, conv: conv, logger: l}, nil
}

func (s *Session) ID() string { return s.conv.ID }

// Turns returns a snapshot of the conversation so far.
func (s *Session) Turns() []ports.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Turns()
}

// Send runs one orchestration step for userText.
func (s *Session) Send(ctx context.Context, userText string) (*harness.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.orchestrator.Step(ctx, s.conv, userText)
	if err != nil {
		s.logger.Error().Err(err).Msg("Step failed")
		return nil, err
	}

	ev := s.logger.Debug().Int("model_calls", resp.ModelCalls).Int("turns", s.conv.Len())
	if resp.ToolCall != nil {
		ev = ev.Str("tool", resp.ToolCall.Name)
	}
	if resp.Usage != nil {
		ev = ev.Int("total_tokens", resp.Usage.TotalTokens)
	}
	ev.Msg("Step completed")
	return resp, nil
}

var _ Generator = (*Session)(nil)
