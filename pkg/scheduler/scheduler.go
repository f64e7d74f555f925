// Package scheduler drives an ExecutionPlan's nodes to completion: it
// polls readiness, calls the solver on blocked nodes, gates writes
// through the configured policy, dispatches ready nodes to executors
// under per-kind concurrency caps, applies returned patches, and
// checkpoints pause/resume state. Grounded on pkg/engine/dag_executor.go's
// notifier-driven executor, generalized from wave-barrier parallelism to
// a single-threaded, dependency-polling dispatch loop: readiness, solving,
// and gate checks run synchronously on the scheduler goroutine; only the
// executor call itself is dispatched asynchronously, matching spec.md's
// "single-threaded cooperative within the engine" concurrency model.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/chainflow/pkg/executor"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/policygate"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// nodeState is the scheduler's private bookkeeping for one plan node
// across a Run call.
type nodeState struct {
	status          models.NodeExecutionStatus
	pauseReason     string
	pauseDetails    map[string]interface{}
	pollAttempts    int
	nextAttemptAtMS int64
	firstAttemptAtMS int64
}

// settlement is what an in-flight executor task reports back to the
// scheduler loop when it completes.
type settlement struct {
	node   *models.PlanNode
	view   map[string]interface{}
	result *executor.Result
	err    error
}

// Run drives plan to completion (or a pause/error boundary) against tree,
// returning the final EngineCheckpoint. If a compatible checkpoint exists
// in the configured Store, the run resumes from it; PausedByNodeID is
// never restored as an active pause, per spec.md's resume contract — a
// resumed node starts back at Pending and is re-evaluated from scratch.
func (s *Scheduler) Run(ctx context.Context, runID string, plan *models.ExecutionPlan, tree *runtime.Tree) (*models.EngineCheckpoint, error) {
	r := newRun(runID)
	state := make(map[string]*nodeState, len(plan.Nodes))
	completed := make(map[string]bool, len(plan.Nodes))

	if s.Store != nil {
		if cp, err := s.Store.Load(ctx, runID); err == nil && cp != nil {
			candidate := &models.EngineCheckpoint{Schema: models.CheckpointSchema, Plan: *plan}
			if candidate.CompatibleWith(cp) {
				tree = runtime.FromMap(cp.RuntimeSnapshot)
				for _, id := range cp.CompletedNodeIDs {
					completed[id] = true
				}
				for id := range cp.PollStateByNodeID {
					poll := cp.PollStateByNodeID[id]
					state[id] = &nodeState{status: models.NodeExecutionPending, pollAttempts: poll.Attempts}
				}
				r.events = append(r.events, cp.Events...)
				for _, ev := range cp.Events {
					if ev.Sequence > r.seq {
						r.seq = ev.Sequence
					}
				}
			}
		}
	}

	for i := range plan.Nodes {
		id := plan.Nodes[i].ID
		if _, ok := state[id]; ok {
			continue
		}
		if completed[id] {
			state[id] = &nodeState{status: models.NodeExecutionCompleted}
		} else {
			state[id] = &nodeState{status: models.NodeExecutionPending}
		}
	}

	s.emit(ctx, r, models.EventTypePlanReady, "", map[string]interface{}{"plan_id": plan.ID})

	readSlots := make(chan struct{}, max1(s.Options.MaxReadConcurrency))
	writeSlots := make(chan struct{}, max1(s.Options.MaxWriteConcurrency))
	globalSlots := make(chan struct{}, max1(s.Options.MaxConcurrency))
	resultCh := make(chan settlement, len(plan.Nodes))
	inFlight := 0

	release := func(readSlot, writeSlot bool) {
		<-globalSlots
		if readSlot {
			<-readSlots
		}
		if writeSlot {
			<-writeSlots
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, r, plan, tree, completed, state, err)
		}

		dispatchedThisPass := false

		for i := range plan.Nodes {
			node := &plan.Nodes[i]
			ns := state[node.ID]
			if ns.status != models.NodeExecutionPending && ns.status != models.NodeExecutionPolling {
				continue
			}
			if ns.status == models.NodeExecutionPolling && ns.nextAttemptAtMS > nowMS() {
				continue
			}
			if !depsComplete(node, completed) {
				continue
			}

			write := isWriteNode(node)
			select {
			case globalSlots <- struct{}{}:
			default:
				continue
			}
			if write {
				select {
				case writeSlots <- struct{}{}:
				default:
					<-globalSlots
					continue
				}
			} else {
				select {
				case readSlots <- struct{}{}:
				default:
					<-globalSlots
					continue
				}
			}

			outcome := s.resolveAndGate(ctx, r, node, tree, completed, ns)
			if outcome.fatal != nil {
				release(!write, write)
				return s.finishWithFatal(ctx, r, plan, tree, completed, state, node, outcome.fatal, outcome.retryable)
			}
			if outcome.terminal {
				release(!write, write)
				dispatchedThisPass = true
				continue
			}
			if !outcome.ready {
				release(!write, write)
				dispatchedThisPass = true
				continue
			}

			ns.status = models.NodeExecutionRunning
			inFlight++
			dispatchedThisPass = true

			go func(node *models.PlanNode, resolved map[string]interface{}, isWrite bool) {
				defer release(!isWrite, isWrite)
				view := tree.Snapshot()
				exec, err := s.Executors.Get(node)
				if err != nil {
					resultCh <- settlement{node: node, view: view, err: err}
					return
				}
				nodeCtx := ctx
				var cancel context.CancelFunc
				if s.Options.NodeTimeout > 0 {
					nodeCtx, cancel = context.WithTimeout(ctx, s.Options.NodeTimeout)
					defer cancel()
				}
				var detect executor.DetectResolver
				if s.Eval != nil {
					detect = s.Eval.Detect
				}
				result, err := exec.Execute(nodeCtx, node, view, executor.Input{ResolvedParams: resolved, Detect: detect})
				resultCh <- settlement{node: node, view: view, result: result, err: err}
			}(node, outcome.resolvedParams, write)
		}

		waitFor := nextPollDeadline(plan, state)

		if inFlight == 0 && !dispatchedThisPass {
			if waitFor <= 0 {
				return s.checkTermination(ctx, r, plan, tree, completed, state)
			}
			// Nothing runnable this instant, but a node's `until` poll
			// timer has not fired yet: sleep until it does rather than
			// declaring deadlock.
			select {
			case <-time.After(waitFor):
			case <-ctx.Done():
				return s.finish(ctx, r, plan, tree, completed, state, ctx.Err())
			}
			continue
		}

		if inFlight == 0 {
			continue
		}

		var timer *time.Timer
		var timerCh <-chan time.Time
		if waitFor > 0 {
			timer = time.NewTimer(waitFor)
			timerCh = timer.C
		}

		select {
		case st := <-resultCh:
			if timer != nil {
				timer.Stop()
			}
			inFlight--
			if fatal, retryable := s.settle(ctx, r, tree, completed, state, st); fatal != nil {
				if s.Options.StopOnError {
					return s.finishWithFatal(ctx, r, plan, tree, completed, state, st.node, fatal, retryable)
				}
			}
		case <-timerCh:
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
		}
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func depsComplete(node *models.PlanNode, completed map[string]bool) bool {
	for _, dep := range node.Deps {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func nowMS() int64 { return time.Now().UnixMilli() }

func nextPollDeadline(plan *models.ExecutionPlan, state map[string]*nodeState) time.Duration {
	var earliest int64
	now := nowMS()
	for i := range plan.Nodes {
		ns := state[plan.Nodes[i].ID]
		if ns.status != models.NodeExecutionPolling {
			continue
		}
		if earliest == 0 || ns.nextAttemptAtMS < earliest {
			earliest = ns.nextAttemptAtMS
		}
	}
	if earliest == 0 {
		return 0
	}
	d := time.Duration(earliest-now) * time.Millisecond
	if d < 0 {
		d = 0
	}
	return d
}

// resolveOutcome is the synchronous (readiness + solve + gate) result
// for one scan pass over a node.
type resolveOutcome struct {
	ready          bool
	terminal       bool
	resolvedParams map[string]interface{}
	fatal          error
	retryable      bool
	gate           *gateResult
}

// resolveAndGate runs spec.md's per-node steps 1-4's non-executor half:
// readiness, solver, and (for write nodes) the policy gate, entirely on
// the single scheduler goroutine. It mutates ns and tree and emits
// events directly; no concurrent caller ever touches the same ns.
func (s *Scheduler) resolveAndGate(ctx context.Context, r *run, node *models.PlanNode, tree *runtime.Tree, completed map[string]bool, ns *nodeState) resolveOutcome {
	initial := s.Solver.Inner.Resolve(ctx, node, tree, completed)

	if initial.State == models.ReadinessSkipped {
		s.emit(ctx, r, models.EventTypeNodeSkipped, node.ID, nodePayload(node, map[string]interface{}{"reason": "condition evaluated false"}))
		ns.status = models.NodeExecutionSkipped
		completed[node.ID] = true
		return resolveOutcome{terminal: true}
	}

	readiness := initial
	var patches []models.Patch
	var outcome *models.SolveOutcome

	if initial.State == models.ReadinessBlocked {
		s.emit(ctx, r, models.EventTypeNodeBlocked, node.ID, nodePayload(node, map[string]interface{}{"readiness": initial}))
		readiness, patches, outcome = s.Solver.Resolve(ctx, node, tree, completed)
		if len(patches) > 0 {
			s.emit(ctx, r, models.EventTypeSolverApplied, node.ID, nodePayload(node, map[string]interface{}{"patches": patches}))
		}
	}

	if outcome != nil {
		switch outcome.Kind {
		case models.SolveOutcomeNeedUserConfirm:
			s.pauseNeedUserConfirm(ctx, r, node, ns, outcome.Reason, outcome.Details)
			return resolveOutcome{terminal: true}
		case models.SolveOutcomeCannotSolve:
			s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
				"error": outcome.Reason, "retryable": false,
			}))
			if s.Options.StopOnError {
				return resolveOutcome{fatal: fmt.Errorf("node %s: %s", node.ID, outcome.Reason), retryable: false}
			}
			if !readiness.Ready() {
				s.pauseNodePaused(ctx, r, node, ns, outcome.Reason, outcome.Details)
				return resolveOutcome{terminal: true}
			}
		}
	}

	if readiness.State == models.ReadinessSkipped {
		s.emit(ctx, r, models.EventTypeNodeSkipped, node.ID, nodePayload(node, map[string]interface{}{"reason": "condition evaluated false"}))
		ns.status = models.NodeExecutionSkipped
		completed[node.ID] = true
		return resolveOutcome{terminal: true}
	}

	if !readiness.Ready() {
		s.pauseNodePaused(ctx, r, node, ns, "blocked after solver", map[string]interface{}{
			"missing_refs": readiness.MissingRefs,
			"errors":       readiness.Errors,
		})
		return resolveOutcome{terminal: true}
	}

	tree.Apply([]models.Patch{models.MergePatch(fmt.Sprintf("%s.%s.params", models.RuntimeNodes, node.ID), readiness.ResolvedParams)}, nil)

	if isWriteNode(node) {
		gr, _ := s.checkGate(ctx, node, tree)
		switch gr.decision.Kind {
		case policygate.DecisionHardBlock:
			s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
				"error": gr.decision.Reason, "retryable": false,
			}))
			if s.Options.StopOnError {
				return resolveOutcome{fatal: fmt.Errorf("node %s: %s", node.ID, gr.decision.Reason), retryable: false}
			}
			s.pauseNodePaused(ctx, r, node, ns, gr.decision.Reason, nil)
			return resolveOutcome{terminal: true}
		case policygate.DecisionNeedUserConfirm:
			summary, _ := policygate.BuildSummary(node, gr.gate, gr.preview, gr.decision)
			details := map[string]interface{}{"hit_reasons": gr.decision.HitReasons}
			if summary != nil {
				details["summary"] = summary
			}
			s.pauseNeedUserConfirm(ctx, r, node, ns, gr.decision.Reason, details)
			return resolveOutcome{terminal: true}
		}
		s.emit(ctx, r, models.EventTypeNodeReady, node.ID, nodePayload(node, nil))
		return resolveOutcome{ready: true, resolvedParams: readiness.ResolvedParams, gate: gr}
	}

	s.emit(ctx, r, models.EventTypeNodeReady, node.ID, nodePayload(node, nil))
	return resolveOutcome{ready: true, resolvedParams: readiness.ResolvedParams}
}

func (s *Scheduler) pauseNeedUserConfirm(ctx context.Context, r *run, node *models.PlanNode, ns *nodeState, reason string, details map[string]interface{}) {
	s.emit(ctx, r, models.EventTypeNeedUserConfirm, node.ID, nodePayload(node, map[string]interface{}{
		"reason": reason, "details": details,
	}))
	ns.status = models.NodeExecutionPaused
	ns.pauseReason = reason
	ns.pauseDetails = details
}

func (s *Scheduler) pauseNodePaused(ctx context.Context, r *run, node *models.PlanNode, ns *nodeState, reason string, details map[string]interface{}) {
	s.emit(ctx, r, models.EventTypeNodePaused, node.ID, nodePayload(node, map[string]interface{}{
		"reason": reason, "details": details,
	}))
	ns.status = models.NodeExecutionPaused
	ns.pauseReason = reason
	ns.pauseDetails = details
}

// settle applies an executor task's outcome: patches, typed events,
// assert, and until/retry bookkeeping, per spec.md's Settlement step.
// It returns a non-nil fatal error if the settlement is terminal under
// stop_on_error.
func (s *Scheduler) settle(ctx context.Context, r *run, tree *runtime.Tree, completed map[string]bool, state map[string]*nodeState, st settlement) (fatal error, retryable bool) {
	node := st.node
	ns := state[node.ID]

	if st.err != nil {
		s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
			"error": st.err.Error(), "retryable": true,
		}))
		ns.status = models.NodeExecutionFailed
		return fmt.Errorf("node %s: %w", node.ID, st.err), true
	}

	result := st.result
	if result.NeedUserConfirm != nil {
		s.pauseNeedUserConfirm(ctx, r, node, ns, result.NeedUserConfirm.Reason, result.NeedUserConfirm.Details)
		return nil, false
	}

	guard := &runtime.Guard{AllowedPrefixes: writePaths(node.Writes)}
	if len(result.Patches) > 0 {
		if err := tree.Apply(result.Patches, guard); err != nil {
			s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
				"error": err.Error(), "retryable": false,
			}))
			ns.status = models.NodeExecutionFailed
			return fmt.Errorf("node %s: %w", node.ID, err), false
		}
	}
	tree.Apply([]models.Patch{models.SetPatch(fmt.Sprintf("%s.%s.outputs", models.RuntimeNodes, node.ID), result.Outputs)}, nil)

	s.emitSettlementEvent(ctx, r, node, result.Outputs)

	if node.Assert != nil {
		ok, err := s.evalBoolRef(ctx, *node.Assert, tree)
		if err != nil || !ok {
			reason := node.AssertMessage
			if reason == "" {
				reason = "assert failed"
			}
			s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
				"error": reason, "retryable": false,
			}))
			ns.status = models.NodeExecutionPaused
			ns.pauseReason = "assert failed"
			return fmt.Errorf("node %s: %s", node.ID, reason), false
		}
	}

	if node.Until != nil {
		fatal, retryable := s.settleUntil(ctx, r, tree, node, ns)
		if fatal == nil && ns.status == models.NodeExecutionCompleted {
			completed[node.ID] = true
		}
		return fatal, retryable
	}

	ns.status = models.NodeExecutionCompleted
	completed[node.ID] = true
	return nil, false
}

func (s *Scheduler) emitSettlementEvent(ctx context.Context, r *run, node *models.PlanNode, outputs map[string]interface{}) {
	switch node.Execution.Kind {
	case models.ExecKindEVMCall:
		if hash, ok := outputs["tx_hash"]; ok {
			s.emit(ctx, r, models.EventTypeTxSent, node.ID, nodePayload(node, map[string]interface{}{"tx_hash": hash}))
		}
		if receipt, ok := outputs["receipt"]; ok {
			s.emit(ctx, r, models.EventTypeTxConfirmed, node.ID, nodePayload(node, map[string]interface{}{"receipt": receipt}))
		}
	case models.ExecKindSolanaInstruction:
		if sig, ok := outputs["signature"]; ok {
			s.emit(ctx, r, models.EventTypeTxSent, node.ID, nodePayload(node, map[string]interface{}{"tx_hash": sig}))
		}
		if conf, ok := outputs["confirmation"]; ok {
			s.emit(ctx, r, models.EventTypeTxConfirmed, node.ID, nodePayload(node, map[string]interface{}{"receipt": conf}))
		}
	default:
		s.emit(ctx, r, models.EventTypeQueryResult, node.ID, nodePayload(node, map[string]interface{}{"outputs": outputs}))
	}
}

func (s *Scheduler) settleUntil(ctx context.Context, r *run, tree *runtime.Tree, node *models.PlanNode, ns *nodeState) (fatal error, retryable bool) {
	ok, err := s.evalBoolRef(ctx, *node.Until, tree)
	if err != nil {
		s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
			"error": err.Error(), "retryable": false,
		}))
		ns.status = models.NodeExecutionFailed
		return fmt.Errorf("node %s: until: %w", node.ID, err), false
	}
	if ok {
		ns.status = models.NodeExecutionCompleted
		return nil, false
	}

	ns.pollAttempts++
	if ns.firstAttemptAtMS == 0 {
		ns.firstAttemptAtMS = nowMS()
	}

	retry := node.RetryPolicy
	maxAttempts := 0
	intervalMS := int64(1000)
	if retry != nil {
		maxAttempts = retry.MaxAttempts
		if retry.IntervalMS > 0 {
			intervalMS = retry.IntervalMS
		}
	}
	timedOut := node.TimeoutMS > 0 && nowMS()-ns.firstAttemptAtMS >= node.TimeoutMS
	exhausted := maxAttempts > 0 && ns.pollAttempts >= maxAttempts

	if timedOut || exhausted {
		s.emit(ctx, r, models.EventTypeError, node.ID, nodePayload(node, map[string]interface{}{
			"error": "until condition not satisfied within timeout/retry budget", "retryable": false,
		}))
		ns.status = models.NodeExecutionFailed
		return fmt.Errorf("node %s: until not satisfied", node.ID), false
	}

	ns.nextAttemptAtMS = nowMS() + intervalMS
	ns.status = models.NodeExecutionPolling
	s.emit(ctx, r, models.EventTypeNodeWaiting, node.ID, nodePayload(node, map[string]interface{}{
		"attempts":           ns.pollAttempts,
		"next_attempt_at_ms": ns.nextAttemptAtMS,
	}))
	return nil, false
}

func (s *Scheduler) evalBoolRef(ctx context.Context, ref models.ValueRef, tree *runtime.Tree) (bool, error) {
	v, err := s.Eval.Eval(ctx, ref, tree)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
	return b, nil
}

func writePaths(writes []models.Write) []string {
	paths := make([]string, len(writes))
	for i, w := range writes {
		paths[i] = w.Path
	}
	return paths
}

// checkTermination decides the final outcome once no node is runnable
// and nothing is in flight: success, a pause (with engine_paused), or a
// deadlock.
func (s *Scheduler) checkTermination(ctx context.Context, r *run, plan *models.ExecutionPlan, tree *runtime.Tree, completed map[string]bool, state map[string]*nodeState) (*models.EngineCheckpoint, error) {
	var paused []map[string]interface{}
	allTerminal := true
	for i := range plan.Nodes {
		ns := state[plan.Nodes[i].ID]
		switch ns.status {
		case models.NodeExecutionPaused:
			paused = append(paused, map[string]interface{}{
				"node": plan.Nodes[i].ID, "reason": ns.pauseReason, "details": ns.pauseDetails,
			})
		case models.NodeExecutionCompleted, models.NodeExecutionSkipped, models.NodeExecutionFailed:
		default:
			allTerminal = false
		}
	}

	if len(paused) > 0 {
		s.emit(ctx, r, models.EventTypeEnginePaused, "", map[string]interface{}{"paused": paused})
		return s.finish(ctx, r, plan, tree, completed, state, nil)
	}

	if allTerminal {
		return s.finish(ctx, r, plan, tree, completed, state, nil)
	}

	s.emit(ctx, r, models.EventTypeError, "", map[string]interface{}{
		"error": models.ErrDeadlock.Error(), "retryable": false,
	})
	return s.finish(ctx, r, plan, tree, completed, state, models.ErrDeadlock)
}

func (s *Scheduler) finishWithFatal(ctx context.Context, r *run, plan *models.ExecutionPlan, tree *runtime.Tree, completed map[string]bool, state map[string]*nodeState, node *models.PlanNode, fatal error, retryable bool) (*models.EngineCheckpoint, error) {
	return s.finish(ctx, r, plan, tree, completed, state, fatal)
}

// finish builds and persists the run's final EngineCheckpoint, emitting
// checkpoint_saved, and returns it alongside the terminal error (nil on
// success or a pause).
func (s *Scheduler) finish(ctx context.Context, r *run, plan *models.ExecutionPlan, tree *runtime.Tree, completed map[string]bool, state map[string]*nodeState, terminalErr error) (*models.EngineCheckpoint, error) {
	cp := s.buildCheckpoint(r, plan, tree, completed, state)
	if s.Store != nil {
		_ = s.Store.Save(ctx, r.id, cp)
	}
	s.emit(ctx, r, models.EventTypeCheckpointSaved, "", map[string]interface{}{"checkpoint_schema": cp.Schema})
	cp.Events = append([]models.Event{}, r.events...)
	return cp, terminalErr
}

func (s *Scheduler) buildCheckpoint(r *run, plan *models.ExecutionPlan, tree *runtime.Tree, completed map[string]bool, state map[string]*nodeState) *models.EngineCheckpoint {
	completedIDs := make([]string, 0, len(completed))
	for id, ok := range completed {
		if ok {
			completedIDs = append(completedIDs, id)
		}
	}

	pollStates := make(map[string]models.PollState)
	pauseStates := make(map[string]models.PauseState)
	for i := range plan.Nodes {
		id := plan.Nodes[i].ID
		ns := state[id]
		if ns.status == models.NodeExecutionPolling {
			pollStates[id] = models.PollState{Attempts: ns.pollAttempts}
		}
		if ns.status == models.NodeExecutionPaused {
			pauseStates[id] = models.PauseState{Reason: ns.pauseReason, Details: ns.pauseDetails}
		}
	}

	return &models.EngineCheckpoint{
		Schema:            models.CheckpointSchema,
		CreatedAt:         time.Now(),
		Plan:              *plan,
		RuntimeSnapshot:   tree.Snapshot(),
		CompletedNodeIDs:  completedIDs,
		PollStateByNodeID: pollStates,
		PausedByNodeID:    pauseStates,
		Events:            append([]models.Event{}, r.events...),
	}
}
