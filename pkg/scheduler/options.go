package scheduler

import (
	"time"

	"github.com/smilemakc/chainflow/internal/checkpointstore"
	"github.com/smilemakc/chainflow/internal/logger"
	"github.com/smilemakc/chainflow/internal/tracesink"
	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/compile/solana"
	"github.com/smilemakc/chainflow/pkg/executor"
	"github.com/smilemakc/chainflow/pkg/policygate"
	"github.com/smilemakc/chainflow/pkg/solver"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

// Options bundles the tunable knobs of a Scheduler, mirroring
// internal/config.SchedulerConfig's shape (a caller typically builds
// Options from a loaded Config rather than hardcoding these).
type Options struct {
	MaxConcurrency      int
	MaxReadConcurrency  int
	MaxWriteConcurrency int
	NodeTimeout         time.Duration
	CheckpointInterval  time.Duration

	// StopOnError mirrors spec.md's stop_on_error plan flag: a fatal,
	// non-retryable error aborts the run instead of continuing past it.
	StopOnError bool
}

// DefaultOptions returns conservative defaults, used when a caller
// constructs a Scheduler without WithOptions.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency:      16,
		MaxReadConcurrency:  12,
		MaxWriteConcurrency: 4,
		NodeTimeout:         30 * time.Second,
		CheckpointInterval:  5 * time.Second,
		StopOnError:         true,
	}
}

// Scheduler drives an ExecutionPlan's nodes to completion, grounded on
// the teacher's DAGExecutor: a notifier-driven executor over a
// dependency graph, generalized here from wave-barrier parallelism to
// a readiness-polling, dependency-driven dispatch loop (spec.md has no
// wave concept — a node becomes dispatchable the instant its deps are
// complete, independent of any sibling).
type Scheduler struct {
	Executors      executor.Manager
	Eval           *valueref.Evaluator
	Solver         *solver.Solver
	EVMCompiler    *evm.Compiler
	SolanaCompiler *solana.Compiler
	Policy         *policygate.Policy
	TokenPolicy    *policygate.TokenPolicy
	Store          checkpointstore.Store
	Trace          *tracesink.Manager
	Logger         *logger.Logger

	Options Options
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithExecutors sets the executor registry consulted to run ready nodes.
func WithExecutors(m executor.Manager) Option { return func(s *Scheduler) { s.Executors = m } }

// WithEvaluator sets the ValueRef evaluator used for readiness, assert,
// and until checks.
func WithEvaluator(e *valueref.Evaluator) Option { return func(s *Scheduler) { s.Eval = e } }

// WithSolver sets the calculated-field solver consulted for blocked nodes.
func WithSolver(sv *solver.Solver) Option { return func(s *Scheduler) { s.Solver = sv } }

// WithCompilers sets the EVM/Solana write compilers used to render a
// policy-gate preview before a write node executes.
func WithCompilers(e *evm.Compiler, sol *solana.Compiler) Option {
	return func(s *Scheduler) {
		s.EVMCompiler = e
		s.SolanaCompiler = sol
	}
}

// WithPolicy sets the default policy gate configuration applied to
// every write node's GateInput.
func WithPolicy(p *policygate.Policy, tokenPolicy *policygate.TokenPolicy) Option {
	return func(s *Scheduler) {
		s.Policy = p
		s.TokenPolicy = tokenPolicy
	}
}

// WithCheckpointStore sets the store the scheduler saves/loads
// EngineCheckpoints through.
func WithCheckpointStore(store checkpointstore.Store) Option {
	return func(s *Scheduler) { s.Store = store }
}

// WithTraceSink attaches a tracesink.Manager; trace append calls are a
// pure side channel and must never change engine semantics if mgr is nil.
func WithTraceSink(mgr *tracesink.Manager) Option { return func(s *Scheduler) { s.Trace = mgr } }

// WithLogger sets the structured logger used for scheduler diagnostics.
func WithLogger(l *logger.Logger) Option { return func(s *Scheduler) { s.Logger = l } }

// WithOptions overrides the scheduler's concurrency/timeout knobs.
func WithOptions(o Options) Option { return func(s *Scheduler) { s.Options = o } }

// New builds a Scheduler from the given options, applying DefaultOptions
// first so a caller only needs to override what it cares about.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{Options: DefaultOptions()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = logger.Default()
	}
	return s
}
