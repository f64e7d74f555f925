package executor

import (
	"fmt"
	"sync"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Manager manages the registration and lookup of executors by name, and
// resolves which registered executor supports a given node.
type Manager interface {
	// Register registers an executor under name. If an executor is
	// already registered under that name, it is replaced in place
	// (its position in the supports-scan order is preserved).
	Register(name string, executor Executor) error

	// Get scans registered executors in registration order and returns
	// the first whose Supports(node) is true.
	Get(node *models.PlanNode) (Executor, error)

	// Has checks if an executor is registered under name.
	Has(name string) bool

	// List returns the names of all registered executors, in
	// registration order.
	List() []string

	// Unregister removes the executor registered under name.
	Unregister(name string) error
}

type namedExecutor struct {
	name     string
	executor Executor
}

// Registry implements Manager with thread-safe registration and a
// supports-scan Get, generalizing the teacher's exact-string nodeType
// lookup into the kind-predicate dispatch spec.md's Executor.supports
// requires.
type Registry struct {
	mu    sync.RWMutex
	order []namedExecutor
	index map[string]int
}

// NewRegistry creates a new executor registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// NewManager creates a new executor manager.
func NewManager() Manager {
	return NewRegistry()
}

// Register registers an executor under name.
func (r *Registry) Register(name string, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("executor name cannot be empty")
	}
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}

	if i, ok := r.index[name]; ok {
		r.order[i].executor = executor
		return nil
	}
	r.index[name] = len(r.order)
	r.order = append(r.order, namedExecutor{name: name, executor: executor})
	return nil
}

// Get returns the first registered executor whose Supports(node) is
// true, scanned in registration order, per spec.md's "pick the first
// supporting executor" scheduler step.
func (r *Registry) Get(node *models.PlanNode) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ne := range r.order {
		if ne.executor.Supports(node) {
			return ne.executor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrExecutorNotFound, node.ID)
}

// Has checks if an executor is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.index[name]
	return ok
}

// List returns the names of all registered executors.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, ne := range r.order {
		names = append(names, ne.name)
	}
	return names
}

// Unregister removes the executor registered under name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrExecutorNotFound, name)
	}
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, name)
	for name, idx := range r.index {
		if idx > i {
			r.index[name] = idx - 1
		}
	}
	return nil
}
