package harness

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/ZanzyTHEbar/toolchat/toolchat/config"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/adapters"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/tools"
	"github.com/rs/zerolog"
)

// HarmCategories are the Gemini harm categories the safety threshold applies to.
var HarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Factory creates and wires harness components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB // Optional, for the libsql transcript store
	logger zerolog.Logger

	cacheOnce sync.Once
	cache     ports.Cache // shared by every geocoder the factory builds
}

// NewFactory creates a new harness factory.
func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// CreateOrchestrator creates a fully wired Orchestrator from config. The
// provider is injected because it depends on the selected backend SDK.
func (f *Factory) CreateOrchestrator(provider ports.Provider) (*Orchestrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("create orchestrator: provider is required")
	}

	limiter := f.createRateLimiter()
	tracer := f.createTracer()
	store, err := f.createStore()
	if err != nil {
		return nil, err
	}

	registry, err := f.CreateRegistry()
	if err != nil {
		return nil, err
	}

	policy := f.CreatePolicy()
	executor := NewExecutor(registry, tracer, policy.ToolTimeout)

	return NewOrchestrator(
		provider,
		registry,
		executor,
		NewPromptBuilder(),
		store,
		limiter,
		tracer,
		f.CreateGenerationConfig(),
		policy,
	), nil
}

// CreateRegistry registers the builtin tools allowed by config.
func (f *Factory) CreateRegistry() (*Registry, error) {
	allowed := f.cfg.Tools.Allowed
	registry := &Registry{}
	for _, tool := range f.BuiltinTools() {
		if len(allowed) > 0 && !slices.Contains(allowed, tool.Name()) {
			continue
		}
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	for _, name := range allowed {
		if _, err := registry.Resolve(name); err != nil {
			f.logger.Warn().Str("tool", name).Msg("Allowed tool is not a builtin, ignoring")
		}
	}
	return registry, nil
}

// BuiltinTools returns get_weather and search_kb configured from config.
func (f *Factory) BuiltinTools() []ports.Tool {
	return []ports.Tool{
		tools.NewWeatherTool(tools.WeatherOptions{
			BaseURL: f.cfg.Tools.Weather.BaseURL,
			Client:  &http.Client{Timeout: f.cfg.Tools.Weather.Timeout},
			Logger:  f.logger,
		}),
		tools.NewKnowledgeBaseTool(f.cfg.Tools.KnowledgeBase.Path, f.logger),
	}
}

// CreateGeocoder creates the Nominatim client. Every geocoder from one
// factory shares the same LRU cache.
func (f *Factory) CreateGeocoder() *tools.Geocoder {
	g := f.cfg.Tools.Geocoding
	return tools.NewGeocoder(tools.GeocoderOptions{
		BaseURL:   g.BaseURL,
		UserAgent: g.UserAgent,
		Limit:     g.Limit,
		Client:    &http.Client{Timeout: g.Timeout},
		Cache:     f.createCache(),
		TTL:       g.CacheTTLSeconds,
		Logger:    f.logger,
	})
}

// CreateGenerationConfig builds the session-wide generation settings.
func (f *Factory) CreateGenerationConfig() ports.GenerationConfig {
	llm := f.cfg.LLM
	safety := make([]ports.SafetySetting, 0, len(HarmCategories))
	for _, category := range HarmCategories {
		safety = append(safety, ports.SafetySetting{Category: category, Threshold: llm.SafetyThreshold})
	}
	return ports.GenerationConfig{
		Model:             llm.Model,
		Temperature:       llm.Temperature,
		MaxOutputTokens:   llm.MaxOutputTokens,
		CandidateCount:    llm.CandidateCount,
		SafetySettings:    safety,
		SystemInstruction: llm.SystemInstruction,
	}
}

// CreatePolicy creates a policy from config, falling back to defaults for
// unset timeouts.
func (f *Factory) CreatePolicy() *Policy {
	policy := DefaultPolicy()
	if f.cfg.Harness.ToolTimeout > 0 {
		policy.ToolTimeout = f.cfg.Harness.ToolTimeout
	} else {
		f.logger.Warn().Dur("tool_timeout", f.cfg.Harness.ToolTimeout).Msg("ToolTimeout not positive, using default")
	}
	if f.cfg.LLM.Timeout > 0 {
		policy.GatewayTimeout = f.cfg.LLM.Timeout
	} else {
		f.logger.Warn().Dur("timeout", f.cfg.LLM.Timeout).Msg("Gateway timeout not positive, using default")
	}
	return policy
}

// CreateStore creates the transcript store selected by config.
func (f *Factory) CreateStore() (ports.ConversationStore, error) { return f.createStore() }

func (f *Factory) createCache() ports.Cache {
	f.cacheOnce.Do(func() {
		if f.cfg.Tools.Geocoding.CacheCapacity <= 0 {
			f.cache = &noOpCache{}
			return
		}
		f.cache = adapters.NewLRUCache(f.cfg.Tools.Geocoding.CacheCapacity)
	})
	return f.cache
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Harness.RateLimitEnabled {
		return &noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Harness.RateLimitCapacity, f.cfg.Harness.RateLimitRefillRate)
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Harness.EnableTracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) createStore() (ports.ConversationStore, error) {
	switch f.cfg.Transcript.Backend {
	case "none", "":
		return &noOpStore{}, nil
	case "file":
		return adapters.NewFileTranscriptStore(f.cfg.Transcript.Path), nil
	case "libsql":
		if f.db == nil {
			return nil, &config.ConfigurationError{Key: "transcript.dsn", Reason: "libsql backend needs an open database"}
		}
		return adapters.NewLibSQLConversationStore(f.db), nil
	default:
		return nil, &config.ConfigurationError{Key: "transcript.backend", Reason: fmt.Sprintf("unsupported backend %q", f.cfg.Transcript.Backend)}
	}
}

// noOpCache implements Cache interface with no-op behavior for testing/disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter implements RateLimiter interface with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// noOpStore implements ConversationStore interface with no-op behavior.
type noOpStore struct{}

func (s *noOpStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	return nil
}

func (s *noOpStore) LoadContext(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	return nil, ports.ErrHistoryUnsupported
}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache             = (*noOpCache)(nil)
	_ ports.RateLimiter       = (*noOpRateLimiter)(nil)
	_ ports.Tracer            = (*noOpTracer)(nil)
	_ ports.ConversationStore = (*noOpStore)(nil)
)
