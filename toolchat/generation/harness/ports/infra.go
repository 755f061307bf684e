package harnessports

import "context"

// Cache memoizes idempotent upstream lookups such as geocoding answers.
// Values are opaque bytes; callers choose the encoding.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RateLimiter gates orchestration steps. Acquire blocks until the step may
// proceed or ctx ends; release must be called once the step is over.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Tracer records spans around steps, model calls and tool executions, and
// point events such as tool failures.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error))
	Event(ctx context.Context, name string, attrs map[string]any)
}
