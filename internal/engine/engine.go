package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/model"
	"github.com/rishimeka/astro/pkg/observability"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/probe"
	"github.com/rishimeka/astro/pkg/runs"
	"github.com/rishimeka/astro/pkg/validator"
)

// DefaultLoopBudget bounds how many loop edges a single run may take before
// the looping eval node fails.
const DefaultLoopBudget = 10

// EventSink receives every wire event of every run, after the transition it
// describes has been persisted. The SSE hub attaches here.
type EventSink func(ev domain.RunEvent)

// Engine executes constellation runs. One engine serves many concurrent
// runs; each run walks in its own goroutine.
type Engine struct {
	runs           *runs.Manager
	constellations ports.ConstellationStore
	model          model.Client
	probes         *probe.Registry

	retry      RetryPolicy
	loopBudget int

	sink    EventSink
	metrics *observability.Metrics
	spans   *observability.SpanEmitter
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*execution
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProbes sets the probe registry execution stars resolve against.
func WithProbes(registry *probe.Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.probes = registry
		}
	}
}

// WithRetryPolicy sets the default per-node retry policy. Stars may still
// override it through their config.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = p
	}
}

// WithLoopBudget sets the per-run bound on loop edge traversals.
func WithLoopBudget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.loopBudget = n
		}
	}
}

// WithEventSink attaches the consumer of emitted wire events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithMetrics attaches prometheus instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSpans attaches the OpenTelemetry span emitter.
func WithSpans(s *observability.SpanEmitter) Option {
	return func(e *Engine) {
		e.spans = s
	}
}

// New creates an engine over the given run manager, constellation store and
// model client.
func New(mgr *runs.Manager, constellations ports.ConstellationStore, modelClient model.Client, opts ...Option) *Engine {
	e := &Engine{
		runs:           mgr,
		constellations: constellations,
		model:          modelClient,
		probes:         probe.NewRegistry(),
		retry:          DefaultRetryPolicy,
		loopBudget:     DefaultLoopBudget,
		logger:         logging.NewNop(),
		active:         make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// execution tracks one in-flight run: its cancel handle, its pending
// confirmation and the channel a decision arrives on.
type execution struct {
	runID    string
	cancel   context.CancelFunc
	decision chan domain.ConfirmationDecision

	mu      sync.Mutex
	pending *domain.Confirmation

	done chan struct{}
}

func (x *execution) setPending(c *domain.Confirmation) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pending = c
}

// takePending atomically claims the pending confirmation. The caller that
// gets a non-nil result owns delivering the decision.
func (x *execution) takePending() *domain.Confirmation {
	x.mu.Lock()
	defer x.mu.Unlock()
	p := x.pending
	x.pending = nil
	return p
}

// Run validates the constellation, persists a fresh run record and starts
// walking it in the background. The returned run id is pollable immediately;
// progress arrives through the event sink.
func (e *Engine) Run(ctx context.Context, constellationID, input string) (string, error) {
	c, err := e.constellations.Load(ctx, constellationID)
	if err != nil {
		return "", fmt.Errorf("load constellation %s: %w", constellationID, err)
	}

	if findings := validator.ValidateConstellation(c); validator.HasErrors(findings) {
		return "", fmt.Errorf("%w: %d finding(s)", domain.ErrInvalidConstellation, len(findings))
	}

	now := time.Now().UTC()
	run := domain.RunRecord{
		ID:              uuid.NewString(),
		ConstellationID: constellationID,
		Status:          domain.RunIdle,
		Input:           input,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.runs.Save(ctx, run); err != nil {
		return "", fmt.Errorf("persist run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	exec := &execution{
		runID:    run.ID,
		cancel:   cancel,
		decision: make(chan domain.ConfirmationDecision, 1),
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	e.active[run.ID] = exec
	e.mu.Unlock()

	e.metrics.RunStarted(constellationID)
	e.logger.Info("run started", "run_id", run.ID, "constellation_id", constellationID)

	go e.execute(runCtx, exec, c, run)

	return run.ID, nil
}

// Confirm delivers the proceed/cancel decision for a run paused on a
// confirmation-gated node. It fails fast when the run is unknown, already
// finished, or not paused on a gate.
func (e *Engine) Confirm(ctx context.Context, runID string, decision domain.ConfirmationDecision) (domain.ConfirmationAck, error) {
	e.mu.Lock()
	exec, ok := e.active[runID]
	e.mu.Unlock()

	if !ok {
		run, err := e.runs.Load(ctx, runID)
		if err != nil {
			return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, err)
		}
		if run.Status.Terminal() {
			return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, domain.ErrRunTerminal)
		}
		return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, domain.ErrNoConfirmationPending)
	}

	if exec.takePending() == nil {
		return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, domain.ErrNoConfirmationPending)
	}

	exec.decision <- decision

	ack := domain.ConfirmationAck{RunID: runID, Status: domain.RunRunning, Message: "confirmation accepted"}
	if !decision.Proceed {
		ack.Status = domain.RunCancelled
		ack.Message = "run cancelled"
	}
	return ack, nil
}

// Pending returns the confirmation a run is currently paused on, if any.
func (e *Engine) Pending(runID string) (domain.Confirmation, bool) {
	e.mu.Lock()
	exec, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		return domain.Confirmation{}, false
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if exec.pending == nil {
		return domain.Confirmation{}, false
	}
	return *exec.pending, true
}

// Wait blocks until the run's walk has finished, then returns the final
// persisted record. Runs that already finished resolve immediately from the
// store.
func (e *Engine) Wait(ctx context.Context, runID string) (domain.RunRecord, error) {
	e.mu.Lock()
	exec, ok := e.active[runID]
	e.mu.Unlock()

	if !ok {
		return e.runs.Load(ctx, runID)
	}

	select {
	case <-exec.done:
		return e.runs.Load(ctx, runID)
	case <-ctx.Done():
		return domain.RunRecord{}, ctx.Err()
	}
}

// Close cancels every in-flight run and waits for their goroutines to stop.
func (e *Engine) Close() {
	e.mu.Lock()
	execs := make([]*execution, 0, len(e.active))
	for _, x := range e.active {
		execs = append(execs, x)
	}
	e.mu.Unlock()

	for _, x := range execs {
		x.cancel()
	}
	for _, x := range execs {
		<-x.done
	}
}

// emit records the event's span and hands it to the sink. Callers persist
// the transition first.
func (e *Engine) emit(ctx context.Context, ev domain.RunEvent) {
	e.spans.Emit(ctx, ev)
	if e.sink != nil {
		e.sink(ev)
	}
}
