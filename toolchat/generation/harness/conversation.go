package harness

import (
	"encoding/json"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/google/uuid"
)

// Conversation is the append-only chat history of one session. Entries are
// copied on the way in and on the way out, so a stored turn can never be
// changed after it is appended. A function result is kept as its JSON
// encoding only; the tool's typed Value stays with the caller.
type Conversation struct {
	ID    string
	turns []ports.Turn
}

// NewConversation starts an empty conversation with a fresh ID.
func NewConversation() *Conversation {
	return &Conversation{ID: uuid.NewString()}
}

// RestoreConversation rebuilds a conversation from persisted turns. Leading
// turns before the first user text are dropped so a truncated window never
// starts in the middle of a tool round.
func RestoreConversation(id string, turns []ports.Turn) *Conversation {
	c := &Conversation{ID: id}
	start := len(turns)
	for i, t := range turns {
		if t.Role == ports.RoleUser && t.Kind() == ports.TurnText {
			start = i
			break
		}
	}
	for _, t := range turns[start:] {
		c.Append(t)
	}
	return c
}

// Append adds a turn to the end of the log and returns its index.
func (c *Conversation) Append(turn ports.Turn) int {
	c.turns = append(c.turns, cloneTurn(turn))
	return len(c.turns) - 1
}

func (c *Conversation) Len() int { return len(c.turns) }

// At returns a copy of the turn at index i.
func (c *Conversation) At(i int) ports.Turn { return cloneTurn(c.turns[i]) }

// Turns returns a snapshot of the whole history.
func (c *Conversation) Turns() []ports.Turn { return c.Since(0) }

// Since returns a snapshot of the turns from index i on.
func (c *Conversation) Since(i int) []ports.Turn {
	if i >= len(c.turns) {
		return nil
	}
	out := make([]ports.Turn, 0, len(c.turns)-i)
	for _, t := range c.turns[i:] {
		out = append(out, cloneTurn(t))
	}
	return out
}

func cloneTurn(t ports.Turn) ports.Turn {
	if t.FunctionCall != nil {
		c := t.FunctionCall.Clone()
		t.FunctionCall = &c
	}
	if t.FunctionResult != nil {
		r := *t.FunctionResult
		r.Value = nil
		if r.JSON != nil {
			r.JSON = append(json.RawMessage(nil), r.JSON...)
		}
		t.FunctionResult = &r
	}
	return t
}
