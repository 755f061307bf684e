package adapters

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

type spanKey struct{}

// span is the tracing state carried in a context.
type span struct {
	path   string         // "step/provider_call"
	fields map[string]any // own attrs merged over the parent's
	logger zerolog.Logger
}

// ZerologTracer writes spans and events as structured log lines. Nested
// spans extend the parent's path and inherit its fields, so one step's model
// calls and tool executions can be grepped by conversation_id.
type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

// StartSpan logs the span start at debug level. The returned finish logs
// the duration, at error level when err is non-nil.
func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	s := span{path: name, fields: make(map[string]any, len(attrs))}
	if parent, ok := ctx.Value(spanKey{}).(span); ok {
		s.path = parent.path + "/" + name
		maps.Copy(s.fields, parent.fields)
	}
	maps.Copy(s.fields, attrs)

	s.logger = t.logger.With().
		Fields(s.fields).
		Str("span", s.path).
		Str("span_id", uuid.NewString()[:8]).
		Logger()
	s.logger.Debug().Msg("span started")

	started := time.Now()
	return context.WithValue(ctx, spanKey{}, s), func(err error) {
		ev := s.logger.Debug()
		if err != nil {
			ev = s.logger.Error().Err(err)
		}
		ev.Dur("duration", time.Since(started)).Msg("span finished")
	}
}

// Event logs a point event in the current span. Events carrying an "error"
// attribute are warnings.
func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger := t.logger
	if s, ok := ctx.Value(spanKey{}).(span); ok {
		logger = s.logger
	}
	ev := logger.Info()
	if _, failed := attrs["error"]; failed {
		ev = logger.Warn()
	}
	ev.Fields(attrs).Str("event", name).Msg("trace event")
}

var _ ports.Tracer = (*ZerologTracer)(nil)
