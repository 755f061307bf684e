package harnessports

import "time"

// Role tags who produced a turn.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// TurnKind identifies which content field of a Turn is populated.
type TurnKind int

const (
	TurnText TurnKind = iota
	TurnFunctionCall
	TurnFunctionResult
)

// Turn is one immutable entry of a conversation. Exactly one of Text,
// FunctionCall or FunctionResult carries the content.
type Turn struct {
	Role           Role        `json:"role"`
	Text           string      `json:"text,omitempty"`
	FunctionCall   *ToolCall   `json:"function_call,omitempty"`
	FunctionResult *ToolResult `json:"function_result,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (k TurnKind) String() string {
	switch k {
	case TurnFunctionCall:
		return "function_call"
	case TurnFunctionResult:
		return "function_result"
	default:
		return "text"
	}
}

// Kind reports which content the turn carries.
func (t Turn) Kind() TurnKind {
	switch {
	case t.FunctionCall != nil:
		return TurnFunctionCall
	case t.FunctionResult != nil:
		return TurnFunctionResult
	default:
		return TurnText
	}
}

func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, CreatedAt: time.Now()}
}

func NewModelTextTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text, CreatedAt: time.Now()}
}

// NewFunctionCallTurn records the call exactly as the model produced it.
func NewFunctionCallTurn(call ToolCall) Turn {
	c := call.Clone()
	return Turn{Role: RoleModel, FunctionCall: &c, CreatedAt: time.Now()}
}

func NewFunctionResultTurn(result ToolResult) Turn {
	r := result
	return Turn{Role: RoleFunction, FunctionResult: &r, CreatedAt: time.Now()}
}
