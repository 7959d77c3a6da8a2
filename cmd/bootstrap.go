package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myclaw/myclaw/internal/agent"
	"github.com/myclaw/myclaw/internal/bootstrap"
	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/config"
	"github.com/myclaw/myclaw/internal/observability"
	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/subscribers"
	"github.com/myclaw/myclaw/internal/tools"
	"github.com/myclaw/myclaw/internal/usage"
)

// app is the wired runtime the CLI commands run against: config, event bus,
// subscribers, usage ledger, tracer and the turn engine. No globals; every
// command builds one and shuts it down when done.
type app struct {
	cfg    *config.Config
	bus    *bus.Bus
	engine *agent.Engine

	sessionLog *subscribers.SessionLog
	metrics    *subscribers.Metrics
	checks     *subscribers.Checks
	ledger     *usage.Ledger

	shutdownTracer func(context.Context) error
}

// newApp loads config, prepares the home directory and wires the runtime.
// approve decides destructive shell commands; nil denies all of them.
func newApp(ctx context.Context, approve tools.ApprovalFunc) (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := bootstrap.EnsureHome(cfg.HomeDir); err != nil {
		return nil, fmt.Errorf("prepare home %s: %w", cfg.HomeDir, err)
	}

	a := &app{cfg: cfg, bus: bus.New()}

	// Subscription order is delivery order: persist the record first, then
	// count it, then react to it.
	a.sessionLog = subscribers.NewSessionLog(cfg.SessionsDir())
	a.sessionLog.Attach(a.bus)

	ledger, err := usage.Open(cfg.UsagePath())
	if err != nil {
		slog.Warn("usage ledger unavailable", "path", cfg.UsagePath(), "error", err)
	} else {
		a.ledger = ledger
	}
	a.metrics = subscribers.NewMetrics(cfg.MetricsDir(), a.ledger)
	a.metrics.Attach(a.bus)

	store := sessions.NewManager()
	a.checks = subscribers.NewChecks(store, subscribers.CheckConfig{
		ESLintEnabled: cfg.Runtime.Checks.ESLint.Enabled,
		ReviewEnabled: cfg.Review.Enabled,
		ReviewTools:   cfg.Review.Tools,
	})
	a.checks.Attach(a.bus)

	subscribers.NewUserProfile(cfg.ProfilePath()).Attach(a.bus)

	tracer, shutdownTracer := observability.NewTracer(ctx, observability.TraceConfig{
		ServiceName:    "myclaw",
		ServiceVersion: Version,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		Protocol:       cfg.Observability.Protocol,
		Insecure:       cfg.Observability.Insecure,
	})
	a.shutdownTracer = shutdownTracer

	a.engine = agent.NewEngine(agent.EngineConfig{
		Config:  cfg,
		Bus:     a.bus,
		Store:   store,
		Approve: approve,
		Tracer:  tracer,
	})
	return a, nil
}

// shutdown settles in-flight checks, flushes the subscriber queues and
// releases the ledger and tracer. Call after the last CloseSession so the
// session_end records are in the queues before the flush.
func (a *app) shutdown(ctx context.Context) {
	a.checks.Flush()
	a.sessionLog.Flush()
	a.metrics.Flush()
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			slog.Warn("usage ledger close", "error", err)
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
	}
}
