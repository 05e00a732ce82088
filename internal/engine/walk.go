package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/model"
)

// errRunCancelled stops the walk after a cancel decision on a gated node.
var errRunCancelled = errors.New("run cancelled")

// walkState is the per-run mutable state threaded through the walk.
type walkState struct {
	exec *execution
	c    *domain.Constellation
	run  domain.RunRecord

	// carried is the payload flowing along the edges. Star outputs replace
	// it; eval answers only route.
	carried string

	// loops counts loop edge traversals against the engine budget.
	loops int
}

// execute owns one run from run_started to its terminal event.
func (e *Engine) execute(ctx context.Context, exec *execution, c *domain.Constellation, run domain.RunRecord) {
	defer func() {
		e.mu.Lock()
		delete(e.active, exec.runID)
		e.mu.Unlock()
		close(exec.done)
	}()

	if _, err := e.runs.Transition(ctx, run.ID, func(r *domain.RunRecord) error {
		r.Status = domain.RunRunning
		return nil
	}); err != nil {
		e.logger.Error("failed to mark run running", "run_id", run.ID, "err", err)
	}
	e.emit(ctx, domain.RunEvent{Type: domain.EventRunStarted, RunID: run.ID})

	ws := &walkState{exec: exec, c: c, run: run, carried: run.Input}

	output, err := e.walk(ctx, ws)

	// Terminal bookkeeping must land even when the run context is already
	// cancelled, as it is on engine shutdown.
	finishCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		e.finish(finishCtx, run.ID, domain.RunCompleted, output, "")
	case errors.Is(err, errRunCancelled):
		e.finish(finishCtx, run.ID, domain.RunCancelled, "", "run cancelled")
	default:
		e.finish(finishCtx, run.ID, domain.RunFailed, "", err.Error())
	}
}

// finish persists the terminal status and emits the matching terminal event.
// Cancelled runs close their stream with run_failed, the wire union has no
// cancel event; the store keeps the real status for historical seeding.
func (e *Engine) finish(ctx context.Context, runID string, status domain.RunStatus, output, errMsg string) {
	if _, err := e.runs.Transition(ctx, runID, func(r *domain.RunRecord) error {
		r.Status = status
		r.FinalOutput = output
		r.Error = errMsg
		return nil
	}); err != nil {
		e.logger.Error("failed to persist terminal run state", "run_id", runID, "err", err)
	}

	if status == domain.RunCompleted {
		e.metrics.RunCompleted()
		e.emit(ctx, domain.RunEvent{Type: domain.EventRunCompleted, RunID: runID, Output: output})
	} else {
		e.metrics.RunFailed()
		e.emit(ctx, domain.RunEvent{Type: domain.EventRunFailed, RunID: runID, Error: errMsg})
	}
	e.logger.Info("run finished", "run_id", runID, "status", string(status))
}

// walk advances node by node from the start anchor and returns the payload
// flowing into the end anchor.
func (e *Engine) walk(ctx context.Context, ws *walkState) (string, error) {
	current, ok := ws.c.StartNode()
	if !ok {
		return "", fmt.Errorf("constellation %s has no start node", ws.c.ID)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("run interrupted: %w", err)
		}

		switch current.Kind {
		case domain.NodeKindEnd:
			return ws.carried, nil

		case domain.NodeKindStart:
			next, err := e.follow(ws.c, current, domain.EdgeTagNone)
			if err != nil {
				return "", err
			}
			current = next

		case domain.NodeKindStar:
			output, branch, err := e.executeNode(ctx, ws, current)
			if err != nil {
				return "", err
			}
			if branch == domain.EdgeTagNone {
				ws.carried = output
			}

			next, err := e.follow(ws.c, current, branch)
			if err != nil {
				return "", err
			}
			current = next

		default:
			return "", fmt.Errorf("node %s has unknown kind %q", current.ID, current.Kind)
		}
	}
}

// follow resolves the next node out of current. Eval branches select the
// edge carrying their tag; everything else takes the first outgoing edge in
// declaration order.
func (e *Engine) follow(c *domain.Constellation, current domain.Node, branch domain.EdgeTag) (domain.Node, error) {
	edges := c.OutgoingEdges(current.ID)
	if len(edges) == 0 {
		return domain.Node{}, fmt.Errorf("node %s has no outgoing edge", current.ID)
	}

	var nextID string
	if branch == domain.EdgeTagNone {
		nextID = edges[0].To
	} else {
		for _, edge := range edges {
			if edge.Tag == branch {
				nextID = edge.To
				break
			}
		}
		if nextID == "" {
			return domain.Node{}, fmt.Errorf("node %s has no edge tagged %q", current.ID, branch)
		}
	}

	next, ok := c.NodeByID(nextID)
	if !ok {
		return domain.Node{}, fmt.Errorf("edge from %s targets unknown node %q", current.ID, nextID)
	}
	return next, nil
}

// executeNode runs one star node through its full lifecycle: confirmation
// gate, retry loop, persistence and events. The returned branch is non-empty
// only for eval stars.
func (e *Engine) executeNode(ctx context.Context, ws *walkState, node domain.Node) (string, domain.EdgeTag, error) {
	star, ok := ws.c.StarByID(node.StarID)
	if !ok {
		err := fmt.Errorf("node %s references unknown star %q", node.ID, node.StarID)
		e.failNode(ctx, ws, node, star, 1, time.Now().UTC(), err)
		return "", domain.EdgeTagNone, err
	}

	if node.RequiresConfirmation {
		if err := e.awaitConfirmation(ctx, ws, node, star); err != nil {
			return "", domain.EdgeTagNone, err
		}
	}

	policy := policyFor(e.retry, star)
	started := time.Now().UTC()

	e.persistNode(ctx, domain.NodeRecord{
		RunID:     ws.run.ID,
		NodeID:    node.ID,
		StarID:    star.ID,
		Status:    domain.NodeRunning,
		Attempt:   1,
		StartedAt: started,
	})
	e.emit(ctx, domain.RunEvent{Type: domain.EventNodeStarted, RunID: ws.run.ID, NodeID: node.ID, StarID: star.ID})
	e.logger.Debug("node started", "run_id", ws.run.ID, "node_id", node.ID, "star_type", string(star.Type))

	var (
		output  string
		branch  domain.EdgeTag
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= policy.MaxAttempts; attempt++ {
		output, branch, lastErr = e.runStar(ctx, ws, node, star)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("run interrupted: %w", ctx.Err())
			break
		}
		if attempt == policy.MaxAttempts {
			break
		}

		e.persistNode(ctx, domain.NodeRecord{
			RunID:     ws.run.ID,
			NodeID:    node.ID,
			StarID:    star.ID,
			Status:    domain.NodeRetrying,
			Error:     lastErr.Error(),
			Attempt:   attempt,
			StartedAt: started,
		})
		e.emit(ctx, domain.RunEvent{
			Type:        domain.EventNodeRetrying,
			RunID:       ws.run.ID,
			NodeID:      node.ID,
			Attempt:     attempt,
			MaxAttempts: policy.MaxAttempts,
			LastError:   lastErr.Error(),
		})
		e.logger.Warn("node retrying", "run_id", ws.run.ID, "node_id", node.ID, "attempt", attempt, "err", lastErr)

		if err := sleepCtx(ctx, policy.Backoff(attempt)); err != nil {
			lastErr = fmt.Errorf("run interrupted: %w", err)
			break
		}
	}

	duration := time.Since(started)

	if lastErr != nil {
		e.metrics.ObserveNode(string(star.Type), "failed", duration)
		e.failNode(ctx, ws, node, star, attempt, started, lastErr)
		return "", domain.EdgeTagNone, fmt.Errorf("node %s: %w", node.ID, lastErr)
	}

	// An eval star that asks to loop once the run's budget is spent fails
	// instead of branching; this is the runtime guard against endless cycles.
	if branch == domain.EdgeTagLoop {
		ws.loops++
		if ws.loops > e.loopBudget {
			err := fmt.Errorf("loop budget exhausted after %d traversals", e.loopBudget)
			e.metrics.ObserveNode(string(star.Type), "failed", duration)
			e.failNode(ctx, ws, node, star, attempt, started, err)
			return "", domain.EdgeTagNone, fmt.Errorf("node %s: %w", node.ID, err)
		}
	}

	e.metrics.ObserveNode(string(star.Type), "completed", duration)
	e.persistNode(ctx, domain.NodeRecord{
		RunID:      ws.run.ID,
		NodeID:     node.ID,
		StarID:     star.ID,
		Status:     domain.NodeCompleted,
		Output:     output,
		Attempt:    attempt,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	e.emit(ctx, domain.RunEvent{Type: domain.EventNodeCompleted, RunID: ws.run.ID, NodeID: node.ID, Output: output})

	return output, branch, nil
}

// runStar performs one execution attempt of a star.
func (e *Engine) runStar(ctx context.Context, ws *walkState, node domain.Node, star domain.Star) (string, domain.EdgeTag, error) {
	switch star.Type {
	case domain.StarExecution:
		if star.Probe == "" {
			return "", domain.EdgeTagNone, fmt.Errorf("execution star %s has no probe binding", star.ID)
		}
		e.emit(ctx, domain.RunEvent{
			Type:    domain.EventNodeProgress,
			RunID:   ws.run.ID,
			NodeID:  node.ID,
			Message: fmt.Sprintf("calling probe %s", star.Probe),
		})

		args := make(map[string]any, len(star.Config)+1)
		for k, v := range star.Config {
			args[k] = v
		}
		args["input"] = ws.carried

		result, err := e.probes.Execute(ctx, star.Probe, args)
		if err != nil {
			return "", domain.EdgeTagNone, err
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return "", domain.EdgeTagNone, fmt.Errorf("encode probe result: %w", err)
		}
		return string(payload), domain.EdgeTagNone, nil

	case domain.StarEval:
		system, prompt := renderDirective(star.Directive, ws.carried)
		resp, err := e.model.Complete(ctx, model.Request{System: system, Prompt: prompt + evalInstruction})
		if err != nil {
			return "", domain.EdgeTagNone, err
		}
		return resp.Text, parseEvalDecision(resp.Text), nil

	default:
		system, prompt := renderDirective(star.Directive, ws.carried)
		resp, err := e.model.Complete(ctx, model.Request{System: system, Prompt: prompt})
		if err != nil {
			return "", domain.EdgeTagNone, err
		}
		return resp.Text, domain.EdgeTagNone, nil
	}
}

// awaitConfirmation pauses the run on a gated node until a decision arrives.
// A proceed resumes the walk, appending any additional context to the
// carried payload; a cancel surfaces errRunCancelled.
func (e *Engine) awaitConfirmation(ctx context.Context, ws *walkState, node domain.Node, star domain.Star) error {
	prompt := confirmationPrompt(node, star)
	ws.exec.setPending(&domain.Confirmation{NodeID: node.ID, Prompt: prompt})

	if _, err := e.runs.Transition(ctx, ws.run.ID, func(r *domain.RunRecord) error {
		r.Status = domain.RunAwaitingConfirmation
		return nil
	}); err != nil {
		return fmt.Errorf("persist awaiting state: %w", err)
	}
	e.emit(ctx, domain.RunEvent{
		Type:   domain.EventAwaitingConfirmation,
		RunID:  ws.run.ID,
		NodeID: node.ID,
		Prompt: prompt,
	})
	e.logger.Info("run awaiting confirmation", "run_id", ws.run.ID, "node_id", node.ID)

	select {
	case d := <-ws.exec.decision:
		if !d.Proceed {
			return errRunCancelled
		}
		if _, err := e.runs.Transition(ctx, ws.run.ID, func(r *domain.RunRecord) error {
			r.Status = domain.RunRunning
			return nil
		}); err != nil {
			return fmt.Errorf("persist resumed state: %w", err)
		}
		e.emit(ctx, domain.RunEvent{Type: domain.EventRunResumed, RunID: ws.run.ID})
		e.logger.Info("run resumed", "run_id", ws.run.ID, "node_id", node.ID)

		if d.AdditionalContext != "" {
			ws.carried = ws.carried + "\n\nAdditional context: " + d.AdditionalContext
		}
		return nil

	case <-ctx.Done():
		ws.exec.takePending()
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
}

// failNode persists and emits a node failure.
func (e *Engine) failNode(ctx context.Context, ws *walkState, node domain.Node, star domain.Star, attempt int, started time.Time, cause error) {
	e.persistNode(ctx, domain.NodeRecord{
		RunID:      ws.run.ID,
		NodeID:     node.ID,
		StarID:     star.ID,
		Status:     domain.NodeFailed,
		Error:      cause.Error(),
		Attempt:    attempt,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	e.emit(ctx, domain.RunEvent{Type: domain.EventNodeFailed, RunID: ws.run.ID, NodeID: node.ID, Error: cause.Error()})
	e.logger.Error("node failed", "run_id", ws.run.ID, "node_id", node.ID, "err", cause)
}

// persistNode saves a node record, logging instead of failing the run when
// the store misbehaves. The write is detached from run cancellation so shut
// down runs still record their last node outcome.
func (e *Engine) persistNode(ctx context.Context, rec domain.NodeRecord) {
	if err := e.runs.SaveNodeRecord(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Error("failed to persist node record", "run_id", rec.RunID, "node_id", rec.NodeID, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
