package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// FileTranscriptStore appends a human-readable transcript to a text file:
//
//	[2024-05-01 10:00:00] You: hello
//	[2024-05-01 10:00:01] Assistant: hi!
//
// It is write-only; LoadContext returns ErrHistoryUnsupported.
type FileTranscriptStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTranscriptStore(path string) *FileTranscriptStore {
	return &FileTranscriptStore{path: path}
}

// SaveTurn appends one transcript entry. The conversation id is not
// written; the file is a running log across sessions.
func (s *FileTranscriptStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := FormatTranscriptLine(turn)

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create transcript directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func (s *FileTranscriptStore) LoadContext(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	return nil, ports.ErrHistoryUnsupported
}

// FormatTranscriptLine renders a turn as it appears in the transcript file.
// Final assistant answers are followed by a blank line.
func FormatTranscriptLine(turn ports.Turn) string {
	ts := turn.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := "[" + ts.Format(transcriptTimeLayout) + "] "

	switch turn.Kind() {
	case ports.TurnFunctionCall:
		return fmt.Sprintf("%sFunction call: %s(%s)\n", prefix, turn.FunctionCall.Name, string(turn.FunctionCall.Args))
	case ports.TurnFunctionResult:
		return fmt.Sprintf("%sFunction result: %s %s\n", prefix, turn.FunctionResult.Name, turn.FunctionResult.Content())
	}

	if turn.Role == ports.RoleUser {
		return prefix + "You: " + singleLine(turn.Text) + "\n"
	}
	return prefix + "Assistant: " + turn.Text + "\n\n"
}

func singleLine(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

var _ ports.ConversationStore = (*FileTranscriptStore)(nil)
