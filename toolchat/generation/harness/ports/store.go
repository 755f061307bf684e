package harnessports

import (
	"context"
	"errors"
)

// ErrHistoryUnsupported is returned by stores that can record turns but not
// read them back (e.g. the plain-text transcript).
var ErrHistoryUnsupported = errors.New("conversation store does not support loading history")

// ConversationStore persists conversation turns outside the process.
type ConversationStore interface {
	SaveTurn(ctx context.Context, conversationID string, turn Turn) error
	LoadContext(ctx context.Context, conversationID string, k int) ([]Turn, error) // last-k turns
}
