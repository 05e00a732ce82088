package astro

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rishimeka/astro/internal/engine"
	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/adapters/memory"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/model"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/probe"
	"github.com/rishimeka/astro/pkg/runs"
	"github.com/rishimeka/astro/pkg/validator"
)

// App is the embedded form of astro: the run engine over pluggable stores,
// with constellation saves gated by the validator the same way the HTTP API
// gates them.
type App struct {
	engine         *engine.Engine
	runs           *runs.Manager
	constellations ports.ConstellationStore
}

type settings struct {
	runStore       ports.RunStore
	constellations ports.ConstellationStore
	modelClient    model.Client
	probes         *probe.Registry
	logger         *slog.Logger
	sink           func(domain.RunEvent)

	retrySet    bool
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	loopBudget int
}

// Option configures New.
type Option func(*settings)

// WithRunStore persists runs somewhere other than process memory.
func WithRunStore(s ports.RunStore) Option {
	return func(cfg *settings) {
		if s != nil {
			cfg.runStore = s
		}
	}
}

// WithConstellationStore persists constellations somewhere other than
// process memory.
func WithConstellationStore(s ports.ConstellationStore) Option {
	return func(cfg *settings) {
		if s != nil {
			cfg.constellations = s
		}
	}
}

// WithModel sets the client stars execute against. The default is the
// offline mock, which answers every directive with a canned completion.
func WithModel(c model.Client) Option {
	return func(cfg *settings) {
		if c != nil {
			cfg.modelClient = c
		}
	}
}

// WithProbes registers the probes execution stars resolve by name.
func WithProbes(r *probe.Registry) Option {
	return func(cfg *settings) {
		if r != nil {
			cfg.probes = r
		}
	}
}

// WithLogger sets a structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *settings) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithRetryPolicy tunes node retries: delays grow exponentially from
// baseDelay and are capped at maxDelay.
func WithRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(cfg *settings) {
		cfg.retrySet = true
		cfg.maxAttempts = maxAttempts
		cfg.baseDelay = baseDelay
		cfg.maxDelay = maxDelay
	}
}

// WithLoopBudget bounds loop-edge traversals per run.
func WithLoopBudget(n int) Option {
	return func(cfg *settings) {
		cfg.loopBudget = n
	}
}

// WithEventSink receives every run event after it is persisted, in emission
// order. Useful for bridging runs into a UI or message bus.
func WithEventSink(fn func(domain.RunEvent)) Option {
	return func(cfg *settings) {
		cfg.sink = fn
	}
}

// New assembles an App. Without options it is fully in-memory and offline:
// memory stores and the mock model client.
func New(opts ...Option) *App {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.runStore == nil {
		cfg.runStore = memory.NewStore()
	}
	if cfg.constellations == nil {
		cfg.constellations = memory.NewConstellationStore()
	}
	if cfg.modelClient == nil {
		cfg.modelClient = model.NewStaticMock("mock completion")
	}

	mgr := runs.NewManager(cfg.runStore, runs.WithLogger(cfg.logger))

	engineOpts := []engine.Option{engine.WithLogger(cfg.logger)}
	if cfg.probes != nil {
		engineOpts = append(engineOpts, engine.WithProbes(cfg.probes))
	}
	if cfg.retrySet {
		engineOpts = append(engineOpts, engine.WithRetryPolicy(engine.RetryPolicy{
			MaxAttempts: cfg.maxAttempts,
			BaseDelay:   cfg.baseDelay,
			MaxDelay:    cfg.maxDelay,
		}))
	}
	if cfg.loopBudget > 0 {
		engineOpts = append(engineOpts, engine.WithLoopBudget(cfg.loopBudget))
	}
	if cfg.sink != nil {
		engineOpts = append(engineOpts, engine.WithEventSink(cfg.sink))
	}

	return &App{
		engine:         engine.New(mgr, cfg.constellations, cfg.modelClient, engineOpts...),
		runs:           mgr,
		constellations: cfg.constellations,
	}
}

// Validate returns the structural findings for a constellation without
// touching the store.
func (a *App) Validate(c *domain.Constellation) []validator.Finding {
	return validator.ValidateConstellation(c)
}

// SaveConstellation validates and persists a constellation. While any
// error-severity finding remains nothing is saved and the findings are
// returned alongside domain.ErrInvalidConstellation.
func (a *App) SaveConstellation(ctx context.Context, c *domain.Constellation) ([]validator.Finding, error) {
	findings := validator.ValidateConstellation(c)
	if validator.HasErrors(findings) {
		return findings, domain.ErrInvalidConstellation
	}
	if err := a.constellations.Save(ctx, c); err != nil {
		return findings, fmt.Errorf("failed to save constellation: %w", err)
	}
	return findings, nil
}

// Run starts a run of the named constellation and returns its id. Execution
// continues in the background; follow it with Wait or an event sink.
func (a *App) Run(ctx context.Context, constellationID, input string) (string, error) {
	return a.engine.Run(ctx, constellationID, input)
}

// Wait blocks until the run terminates and returns its final record.
func (a *App) Wait(ctx context.Context, runID string) (domain.RunRecord, error) {
	return a.engine.Wait(ctx, runID)
}

// Confirm answers a pending confirmation gate. Proceeding resumes the run
// with additionalContext appended to the gated star's input; cancelling
// terminates it.
func (a *App) Confirm(ctx context.Context, runID string, proceed bool, additionalContext string) (domain.ConfirmationAck, error) {
	return a.engine.Confirm(ctx, runID, domain.ConfirmationDecision{
		Proceed:           proceed,
		AdditionalContext: additionalContext,
	})
}

// Pending reports the confirmation a paused run is waiting on.
func (a *App) Pending(runID string) (domain.Confirmation, bool) {
	return a.engine.Pending(runID)
}

// Runs exposes the run manager for record access.
func (a *App) Runs() *runs.Manager {
	return a.runs
}

// Constellations exposes the constellation store.
func (a *App) Constellations() ports.ConstellationStore {
	return a.constellations
}

// Close cancels active runs and waits for them to finish persisting.
func (a *App) Close() {
	a.engine.Close()
}
