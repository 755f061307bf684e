package generation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []ports.Reply
	prompts []ports.PromptInput
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, in ports.PromptInput, cfg ports.GenerationConfig) (ports.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, in)
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

type memoryStore struct {
	mu    sync.Mutex
	turns map[string][]ports.Turn
}

func (s *memoryStore) SaveTurn(ctx context.Context, id string, turn ports.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turns == nil {
		s.turns = map[string][]ports.Turn{}
	}
	s.turns[id] = append(s.turns[id], turn)
	return nil
}

func (s *memoryStore) LoadContext(ctx context.Context, id string, k int) ([]ports.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[id]
	if k <= 0 || k >= len(turns) {
		return turns, nil
	}
	return turns[len(turns)-k:], nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "search_kb" }
func (echoTool) Description() string { return "echo" }
func (echoTool) Schema() []byte      { return []byte(`{"type":"object"}`) }
func (echoTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	return map[string]string{"answer": "42"}, nil
}

func newOrchestrator(t *testing.T, provider ports.Provider, store ports.ConversationStore) *harness.Orchestrator {
	t.Helper()
	registry, err := harness.NewRegistry(echoTool{})
	require.NoError(t, err)
	return harness.NewOrchestrator(provider, registry, nil, nil, store, nil, nil, ports.GenerationConfig{Model: "m"}, nil)
}

func TestSession_SendAccumulatesTurns(t *testing.T) {
	provider := &scriptedProvider{replies: []ports.Reply{
		ports.TextReply("hi"),
		ports.FunctionCallReply(ports.ToolCall{ID: "c1", Name: "search_kb", Args: json.RawMessage(`{"query":"q"}`)}),
		ports.TextReply("The answer is 42"),
	}}
	session := NewSession(newOrchestrator(t, provider, &memoryStore{}), zerolog.Nop())

	resp, err := session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)

	resp, err = session.Send(context.Background(), "what is it?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Text)
	require.NotNil(t, resp.ToolCall)

	turns := session.Turns()
	require.Len(t, turns, 6)
	assert.Equal(t, ports.TurnFunctionCall, turns[3].Kind())
	assert.Equal(t, ports.TurnFunctionResult, turns[4].Kind())

	// The follow-up call sees the whole history.
	assert.Len(t, provider.prompts[2].Turns, 5)
}

func TestResumeSession(t *testing.T) {
	store := &memoryStore{}
	provider := &scriptedProvider{replies: []ports.Reply{
		ports.FunctionCallReply(ports.ToolCall{ID: "c1", Name: "search_kb", Args: json.RawMessage(`{}`)}),
		ports.TextReply("first"),
		ports.TextReply("second"),
	}}
	orch := newOrchestrator(t, provider, store)

	session := NewSession(orch, zerolog.Nop())
	_, err := session.Send(context.Background(), "one")
	require.NoError(t, err)

	resumed, err := ResumeSession(context.Background(), orch, session.ID(), 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, session.ID(), resumed.ID())
	assert.Len(t, resumed.Turns(), 4)

	// A window cutting into the tool round starts at the next user turn.
	_, err = resumed.Send(context.Background(), "two")
	require.NoError(t, err)
	window, err := ResumeSession(context.Background(), orch, session.ID(), 4, zerolog.Nop())
	require.NoError(t, err)
	turns := window.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "two", turns[0].Text)

	_, err = ResumeSession(context.Background(), orch, "missing", 0, zerolog.Nop())
	require.Error(t, err)
}
