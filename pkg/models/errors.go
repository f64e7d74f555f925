// Package models defines the shared data model for execution plans,
// runtime values, readiness, checkpoints, and policy-gate records.
package models

import "errors"

// Sentinel errors surfaced by the core packages. Callers should use
// errors.Is against these rather than matching on message text.
var (
	// ValueRef / CEL
	ErrValueRefMissing      = errors.New("value ref: missing path")
	ErrValueRefType         = errors.New("value ref: type mismatch")
	ErrCELSyntax            = errors.New("cel: syntax error")
	ErrCELEval              = errors.New("cel: evaluation error")
	ErrNonTerminatingDiv    = errors.New("bigmath: non-terminating decimal")
	ErrInvalidDecimal       = errors.New("bigmath: invalid decimal literal")
	ErrTruncatingConversion = errors.New("cel: to_atomic disallows truncation")

	// Runtime / patches
	ErrPatchRejected = errors.New("runtime: patch rejected by guard")
	ErrPatchPath     = errors.New("runtime: invalid patch path")

	// Solver
	ErrCalcFieldCycle = errors.New("solver: calculated field cycle")

	// Compilers
	ErrCompile = errors.New("compile: invalid execution spec")

	// Policy gate
	ErrPolicyHardBlock = errors.New("policy: hard block")

	// Scheduler
	ErrDeadlock               = errors.New("scheduler: deadlock, no runnable or pending nodes")
	ErrCheckpointIncompatible = errors.New("scheduler: checkpoint incompatible with plan")

	// Executor registry
	ErrExecutorNotFound = errors.New("executor: no executor supports node")
	ErrExecutorExists   = errors.New("executor: already registered")

	// Validation
	ErrValidationFailed = errors.New("validation failed")
	ErrRequired         = errors.New("required field is missing")

	// Workflow / plan lookups
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
)

// ValueRefError names the offending ValueRef path and wraps the cause.
type ValueRefError struct {
	Path string
	Err  error
}

func (e *ValueRefError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *ValueRefError) Unwrap() error { return e.Err }

// CELError carries the offending expression and wraps the cause.
type CELError struct {
	Expr string
	Pos  int
	Err  error
}

func (e *CELError) Error() string {
	return "cel: " + e.Err.Error() + " in `" + e.Expr + "`"
}

func (e *CELError) Unwrap() error { return e.Err }

// CompileError names the offending field path in an ExecutionSpec.
type CompileError struct {
	Field string
	Err   error
}

func (e *CompileError) Error() string {
	return "compile: " + e.Field + ": " + e.Err.Error()
}

func (e *CompileError) Unwrap() error { return e.Err }

// PlanError represents an error scoped to a single plan node.
type PlanError struct {
	NodeID string
	Err    error
}

func (e *PlanError) Error() string {
	return "node " + e.NodeID + ": " + e.Err.Error()
}

func (e *PlanError) Unwrap() error { return e.Err }

// ValidationError mirrors the teacher's field/message validation error shape.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}
