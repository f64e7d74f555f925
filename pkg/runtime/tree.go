// Package runtime implements the RuntimeTree: the nested, mutex-guarded
// value store the scheduler exclusively owns during a run, mutated only
// through Patch application.
package runtime

import (
	"strconv"
	"strings"
	"sync"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Tree is a nested mapping addressed by dot-segmented paths, guarded by a
// single RWMutex. Grounded on the teacher's executionState's mutex-guarded
// map-of-maps, generalized from fixed per-node fields to an arbitrary
// nested tree.
type Tree struct {
	mu   sync.RWMutex
	root map[string]interface{}
}

// New creates an empty Tree seeded with the reserved top-level sub-trees.
func New() *Tree {
	return &Tree{root: map[string]interface{}{
		models.RuntimeInputs:     map[string]interface{}{},
		models.RuntimeCtx:        map[string]interface{}{},
		models.RuntimeParams:     map[string]interface{}{},
		models.RuntimeCalculated: map[string]interface{}{},
		models.RuntimeQuery:      map[string]interface{}{},
		models.RuntimeNodes:      map[string]interface{}{},
		models.RuntimePolicy:     map[string]interface{}{},
	}}
}

// FromMap wraps an existing map as a Tree, e.g. when restoring from an
// EngineCheckpoint's RuntimeSnapshot.
func FromMap(m map[string]interface{}) *Tree {
	if m == nil {
		m = map[string]interface{}{}
	}
	return &Tree{root: m}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get resolves a dot-segmented path against the tree, returning the value
// and whether it was found. Numeric segments index into lists.
func (t *Tree) Get(path string) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lookup(t.root, splitPath(path))
}

func lookup(node interface{}, segments []string) (interface{}, bool) {
	if len(segments) == 0 {
		return node, true
	}
	seg := segments[0]
	rest := segments[1:]

	switch n := node.(type) {
	case map[string]interface{}:
		v, ok := n[seg]
		if !ok {
			return nil, false
		}
		return lookup(v, rest)
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return lookup(n[idx], rest)
	default:
		return nil, false
	}
}

// Snapshot returns a deep copy of the tree's root, suitable for a
// checkpoint's RuntimeSnapshot or an executor's read-only param view.
func (t *Tree) Snapshot() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return deepClone(t.root).(map[string]interface{})
}

func deepClone(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			out[k] = deepClone(v2)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, v2 := range val {
			out[i] = deepClone(v2)
		}
		return out
	default:
		return val
	}
}
