package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/internal/engine"
	"github.com/rishimeka/astro/pkg/adapters/memory"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/model"
	"github.com/rishimeka/astro/pkg/probe"
	"github.com/rishimeka/astro/pkg/runs"
)

// eventLog captures emitted events for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []domain.RunEvent
}

func (l *eventLog) add(ev domain.RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []domain.RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.RunEvent(nil), l.events...)
}

func (l *eventLog) types() []domain.RunEventType {
	var out []domain.RunEventType
	for _, ev := range l.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) byType(t domain.RunEventType) []domain.RunEvent {
	var out []domain.RunEvent
	for _, ev := range l.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	engine *engine.Engine
	runs   *runs.Manager
	consts *memory.ConstellationStore
	events *eventLog
}

func newHarness(t *testing.T, client model.Client, opts ...engine.Option) *harness {
	t.Helper()

	h := &harness{
		runs:   runs.NewManager(memory.NewStore()),
		consts: memory.NewConstellationStore(),
		events: &eventLog{},
	}
	base := []engine.Option{
		engine.WithEventSink(h.events.add),
		engine.WithRetryPolicy(engine.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	}
	h.engine = engine.New(h.runs, h.consts, client, append(base, opts...)...)
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) store(t *testing.T, c *domain.Constellation) {
	t.Helper()
	require.NoError(t, h.consts.Save(context.Background(), c))
}

// start makes a run and waits for it to finish.
func (h *harness) runToEnd(t *testing.T, constellationID, input string) domain.RunRecord {
	t.Helper()

	runID, err := h.engine.Run(context.Background(), constellationID, input)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := h.engine.Wait(ctx, runID)
	require.NoError(t, err)
	return rec
}

func starNode(id, starID string, starType domain.StarType) domain.Node {
	return domain.Node{ID: id, Kind: domain.NodeKindStar, StarID: starID, StarType: starType}
}

// linear is start -> one worker -> end.
func linear() *domain.Constellation {
	return &domain.Constellation{
		ID:   "linear",
		Name: "Linear",
		Stars: []domain.Star{
			{ID: "s-work", Name: "Summarize", Type: domain.StarWorker,
				Directive: domain.Directive{Template: "Summarize: {{input}}"}},
		},
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.NodeKindStart},
			starNode("n-work", "s-work", domain.StarWorker),
			{ID: "end", Kind: domain.NodeKindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: "start", To: "n-work"},
			{ID: "e2", From: "n-work", To: "end"},
		},
	}
}

// looped is start -> worker -> eval -> (continue -> end | loop -> worker).
func looped() *domain.Constellation {
	return &domain.Constellation{
		ID:   "looped",
		Name: "Looped",
		Stars: []domain.Star{
			{ID: "s-draft", Name: "Draft", Type: domain.StarWorker,
				Directive: domain.Directive{Template: "Draft: {{input}}"}},
			{ID: "s-review", Name: "Review", Type: domain.StarEval,
				Directive: domain.Directive{Template: "Is this good enough? {{input}}"}},
		},
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.NodeKindStart},
			starNode("n-draft", "s-draft", domain.StarWorker),
			starNode("n-review", "s-review", domain.StarEval),
			{ID: "end", Kind: domain.NodeKindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: "start", To: "n-draft"},
			{ID: "e2", From: "n-draft", To: "n-review"},
			{ID: "e3", From: "n-review", To: "end", Tag: domain.EdgeTagContinue},
			{ID: "e4", From: "n-review", To: "n-draft", Tag: domain.EdgeTagLoop},
		},
	}
}

func TestEngineRunCompletes(t *testing.T) {
	h := newHarness(t, model.NewStaticMock("summary text"))
	h.store(t, linear())

	rec := h.runToEnd(t, "linear", "the raw article")

	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Equal(t, "summary text", rec.FinalOutput)
	assert.Empty(t, rec.Error)

	assert.Equal(t, []domain.RunEventType{
		domain.EventRunStarted,
		domain.EventNodeStarted,
		domain.EventNodeCompleted,
		domain.EventRunCompleted,
	}, h.events.types())

	started := h.events.byType(domain.EventNodeStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "n-work", started[0].NodeID)
	assert.Equal(t, "s-work", started[0].StarID)

	nodes, err := h.runs.NodeRecords(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, domain.NodeCompleted, nodes[0].Status)
	assert.Equal(t, "summary text", nodes[0].Output)
	assert.False(t, nodes[0].StartedAt.IsZero())
	assert.False(t, nodes[0].FinishedAt.IsZero())
}

func TestEngineRendersDirective(t *testing.T) {
	mock := model.NewMock(func(req model.Request) (model.Response, error) {
		return model.Response{Text: "ok"}, nil
	})
	h := newHarness(t, mock)
	h.store(t, linear())

	h.runToEnd(t, "linear", "the raw article")

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Summarize: the raw article", calls[0].Prompt)
}

func TestEngineRejectsInvalidConstellation(t *testing.T) {
	h := newHarness(t, model.NewStaticMock("x"))

	broken := linear()
	broken.Nodes = broken.Nodes[:2] // drop the end anchor
	h.store(t, broken)

	_, err := h.engine.Run(context.Background(), "linear", "in")
	assert.ErrorIs(t, err, domain.ErrInvalidConstellation)
	assert.Empty(t, h.events.all())
}

func TestEngineUnknownConstellation(t *testing.T) {
	h := newHarness(t, model.NewStaticMock("x"))

	_, err := h.engine.Run(context.Background(), "missing", "in")
	assert.ErrorIs(t, err, domain.ErrConstellationNotFound)
}

func TestEngineEvalLoopsThenContinues(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	mock := model.NewMock(func(req model.Request) (model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if strings.Contains(req.Prompt, "good enough") {
			// First review says loop, second says continue.
			if calls <= 2 {
				return model.Response{Text: "loop"}, nil
			}
			return model.Response{Text: "continue"}, nil
		}
		return model.Response{Text: fmt.Sprintf("draft %d", calls)}, nil
	})

	h := newHarness(t, mock)
	h.store(t, looped())

	rec := h.runToEnd(t, "looped", "topic")

	assert.Equal(t, domain.RunCompleted, rec.Status)
	// Draft ran twice: once initially, once after the loop edge.
	drafts := 0
	for _, ev := range h.events.byType(domain.EventNodeCompleted) {
		if ev.NodeID == "n-draft" {
			drafts++
		}
	}
	assert.Equal(t, 2, drafts)
	// The final output is the second draft, not the eval answer.
	assert.Contains(t, rec.FinalOutput, "draft")
}

func TestEngineLoopBudgetExhausted(t *testing.T) {
	mock := model.NewMock(func(req model.Request) (model.Response, error) {
		if strings.Contains(req.Prompt, "good enough") {
			return model.Response{Text: "loop"}, nil
		}
		return model.Response{Text: "another draft"}, nil
	})

	h := newHarness(t, mock, engine.WithLoopBudget(2))
	h.store(t, looped())

	rec := h.runToEnd(t, "looped", "topic")

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "loop budget exhausted after 2 traversals")

	failed := h.events.byType(domain.EventNodeFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "n-review", failed[0].NodeID)

	terminal := h.events.byType(domain.EventRunFailed)
	require.Len(t, terminal, 1)
	assert.Contains(t, terminal[0].Error, "loop budget exhausted")
}

func TestEngineRetriesThenSucceeds(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	mock := model.NewMock(func(model.Request) (model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return model.Response{}, errors.New("transient upstream error")
		}
		return model.Response{Text: "finally"}, nil
	})

	h := newHarness(t, mock, engine.WithRetryPolicy(engine.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}))
	h.store(t, linear())

	rec := h.runToEnd(t, "linear", "in")

	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Equal(t, "finally", rec.FinalOutput)

	retries := h.events.byType(domain.EventNodeRetrying)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Attempt)
	assert.Equal(t, 2, retries[1].Attempt)
	assert.Equal(t, 3, retries[0].MaxAttempts)
	assert.Equal(t, "transient upstream error", retries[0].LastError)

	nodes, err := h.runs.NodeRecords(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 3, nodes[0].Attempt)
}

func TestEngineRetryExhausted(t *testing.T) {
	mock := model.NewMock(func(model.Request) (model.Response, error) {
		return model.Response{}, errors.New("model unreachable")
	})

	h := newHarness(t, mock, engine.WithRetryPolicy(engine.RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}))
	h.store(t, linear())

	rec := h.runToEnd(t, "linear", "in")

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "model unreachable")

	assert.Equal(t, []domain.RunEventType{
		domain.EventRunStarted,
		domain.EventNodeStarted,
		domain.EventNodeRetrying,
		domain.EventNodeFailed,
		domain.EventRunFailed,
	}, h.events.types())
}

func TestEngineExecutionStarCallsProbe(t *testing.T) {
	registry := probe.NewRegistry()
	registry.Register(probe.NewFunc("echo", func(_ context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"echoed": input["input"], "mode": input["mode"]}, nil
	}))

	c := &domain.Constellation{
		ID: "probed",
		Stars: []domain.Star{
			{ID: "s-probe", Name: "Echo", Type: domain.StarExecution, Probe: "echo",
				Config: map[string]any{"mode": "loud"}},
		},
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.NodeKindStart},
			starNode("n-probe", "s-probe", domain.StarExecution),
			{ID: "end", Kind: domain.NodeKindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: "start", To: "n-probe"},
			{ID: "e2", From: "n-probe", To: "end"},
		},
	}

	h := newHarness(t, model.NewStaticMock("unused"), engine.WithProbes(registry))
	h.store(t, c)

	rec := h.runToEnd(t, "probed", "ping")

	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Contains(t, rec.FinalOutput, `"echoed":"ping"`)
	assert.Contains(t, rec.FinalOutput, `"mode":"loud"`)

	progress := h.events.byType(domain.EventNodeProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, "calling probe echo", progress[0].Message)
}

func TestEngineProbeNotFound(t *testing.T) {
	c := &domain.Constellation{
		ID: "probed",
		Stars: []domain.Star{
			{ID: "s-probe", Type: domain.StarExecution, Probe: "ghost"},
		},
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.NodeKindStart},
			starNode("n-probe", "s-probe", domain.StarExecution),
			{ID: "end", Kind: domain.NodeKindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: "start", To: "n-probe"},
			{ID: "e2", From: "n-probe", To: "end"},
		},
	}

	h := newHarness(t, model.NewStaticMock("unused"))
	h.store(t, c)

	rec := h.runToEnd(t, "probed", "in")

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "probe not found")
}

// blockingModel blocks until its context is cancelled.
type blockingModel struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingModel) Name() string { return "blocking" }

func (b *blockingModel) Complete(ctx context.Context, _ model.Request) (model.Response, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return model.Response{}, ctx.Err()
}

func TestEngineCloseInterruptsRun(t *testing.T) {
	blocker := &blockingModel{started: make(chan struct{})}
	h := newHarness(t, blocker)
	h.store(t, linear())

	runID, err := h.engine.Run(context.Background(), "linear", "in")
	require.NoError(t, err)

	select {
	case <-blocker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("model call never started")
	}

	h.engine.Close()

	rec, err := h.runs.Load(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "run interrupted")
}

func TestEngineWaitUnknownRun(t *testing.T) {
	h := newHarness(t, model.NewStaticMock("x"))

	_, err := h.engine.Wait(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
