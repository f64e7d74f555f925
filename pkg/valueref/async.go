package valueref

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// Result is the outcome of an asynchronous ValueRef evaluation.
type Result struct {
	Value interface{}
	Err   error
}

// EvalAsync evaluates ref on a background goroutine and returns a channel
// that receives exactly one Result, so a caller need not block on
// detect-provider round trips.
func (e *Evaluator) EvalAsync(ctx context.Context, ref models.ValueRef, tree *runtime.Tree) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		v, err := e.Eval(ctx, ref, tree)
		out <- Result{Value: v, Err: err}
	}()
	return out
}

// EvalAllAsync evaluates multiple ValueRefs concurrently against the same
// snapshot and returns their results in input order, or the first error
// encountered.
func (e *Evaluator) EvalAllAsync(ctx context.Context, refs []models.ValueRef, snapshot map[string]interface{}) ([]interface{}, error) {
	type indexed struct {
		i   int
		res Result
	}
	out := make(chan indexed, len(refs))

	for i, ref := range refs {
		go func(i int, ref models.ValueRef) {
			v, err := e.evalAgainst(ctx, ref, snapshot)
			out <- indexed{i: i, res: Result{Value: v, Err: err}}
		}(i, ref)
	}

	results := make([]interface{}, len(refs))
	var firstErr error
	for range refs {
		item := <-out
		if item.res.Err != nil && firstErr == nil {
			firstErr = item.res.Err
		}
		results[item.i] = item.res.Value
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
