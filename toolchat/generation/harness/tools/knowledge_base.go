package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/rs/zerolog"
)

const KnowledgeBaseToolName = "search_kb"

var (
	ErrKnowledgeBaseNotFound = errors.New("knowledge base file not found")
	ErrKnowledgeBaseInvalid  = errors.New("invalid JSON in knowledge base file")
)

// KnowledgeBaseArgs are the parameters of search_kb.
type KnowledgeBaseArgs struct {
	Query string `json:"query" jsonschema:"description=The question to look up in the knowledge base"`
}

// KnowledgeBaseTool returns the whole knowledge base document; the model
// picks what is relevant. The file is re-read on every call so edits are
// visible without a restart.
type KnowledgeBaseTool struct {
	path    string
	logger  zerolog.Logger
	schema  []byte
	decoder *ArgumentDecoder
}

var knowledgeBaseSchema = ReflectSchema(&KnowledgeBaseArgs{})

func NewKnowledgeBaseTool(path string, logger zerolog.Logger) *KnowledgeBaseTool {
	return &KnowledgeBaseTool{
		path:    path,
		logger:  logger.With().Str("tool", KnowledgeBaseToolName).Logger(),
		schema:  knowledgeBaseSchema,
		decoder: MustArgumentDecoder(knowledgeBaseSchema),
	}
}

func (t *KnowledgeBaseTool) Name() string { return KnowledgeBaseToolName }

func (t *KnowledgeBaseTool) Description() string {
	return "Search the knowledge base for information about the given query."
}

func (t *KnowledgeBaseTool) Schema() []byte { return t.schema }

// Invoke ignores the query beyond checking it is present.
func (t *KnowledgeBaseTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	var params KnowledgeBaseArgs
	if err := t.decoder.Decode(args, &params); err != nil {
		return nil, err
	}
	t.logger.Debug().Str("query", params.Query).Msg("Loading knowledge base")
	return t.Load()
}

// Load reads and parses the knowledge base file.
func (t *KnowledgeBaseTool) Load() (any, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrKnowledgeBaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrKnowledgeBaseInvalid
	}
	return doc, nil
}

var _ ports.Tool = (*KnowledgeBaseTool)(nil)
