package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/toolchat/toolchat/config"
	"github.com/ZanzyTHEbar/toolchat/toolchat/db"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/tools"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/providers"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	db           *sql.DB
	factory      *harness.Factory
	geocoder     *tools.Geocoder // built once so its cache lives across lookups
	orchestrator *harness.Orchestrator
	closers      []io.Closer
}

type appOptions struct {
	persona  bool // fall back to the default persona when no system instruction is set
	needsLLM bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.App.LogFormat = logFormat
	}

	logger, err := newLogger(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}

	if opts.needsLLM {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.persona && cfg.LLM.SystemInstruction == "" {
		cfg.LLM.SystemInstruction = defaultPersona
	}

	a := &app{cfg: cfg, logger: logger}

	if cfg.Transcript.Backend == "libsql" {
		database, err := db.Connect(ctx, cfg.Transcript.DSN, logger)
		if err != nil {
			return nil, err
		}
		a.db = database
		a.closers = append(a.closers, database)
	}

	a.factory = harness.NewFactory(cfg, a.db, logger)
	a.geocoder = a.factory.CreateGeocoder()

	if opts.needsLLM {
		provider, closer, err := providers.New(ctx, cfg.LLM, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closer)

		a.orchestrator, err = a.factory.CreateOrchestrator(provider)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Debug().
			Str("provider", provider.Name()).
			Str("model", cfg.LLM.Model).
			Strs("tools", a.orchestrator.Registry().Names()).
			Msg("Orchestrator ready")
	}
	return a, nil
}

func (a *app) newSession() *generation.Session {
	return generation.NewSession(a.orchestrator, a.logger)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}

func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), &config.ConfigurationError{Key: "app.log_level", Reason: fmt.Sprintf("invalid level %q", level)}
	}
	out := w
	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), &config.ConfigurationError{Key: "app.log_format", Reason: fmt.Sprintf("invalid format %q", format)}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
