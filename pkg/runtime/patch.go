package runtime

import (
	"fmt"
	"strconv"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Guard restricts which paths a set of Patches may touch. A nil Guard
// allows everything; callers pass a Guard scoped to a node's declared
// `writes` list when applying an executor's patches.
type Guard struct {
	AllowedPrefixes []string
}

// Allows reports whether path is within one of the guard's allowed
// prefixes (an allowed prefix matches itself and anything nested under it).
func (g *Guard) Allows(path string) bool {
	if g == nil || len(g.AllowedPrefixes) == 0 {
		return true
	}
	for _, prefix := range g.AllowedPrefixes {
		if path == prefix || (len(path) > len(prefix) && path[:len(prefix)+1] == prefix+".") {
			return true
		}
	}
	return false
}

// Apply applies a sequence of Patches atomically under the tree's write
// lock: set replaces the addressed sub-tree, merge shallow-merges object
// keys at the addressed path (nested maps are not deep-merged, matching
// spec.md §3's explicit non-goal), and delete removes the addressed key.
// A patch whose path the guard rejects returns ErrPatchRejected and no
// patches in the batch are applied.
func (t *Tree) Apply(patches []models.Patch, guard *Guard) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range patches {
		if !guard.Allows(p.Path) {
			return fmt.Errorf("%w: %s", models.ErrPatchRejected, p.Path)
		}
	}

	for _, p := range patches {
		if err := applyOne(t.root, p); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(root map[string]interface{}, p models.Patch) error {
	segments := splitPath(p.Path)
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", models.ErrPatchPath)
	}

	parent, lastSeg, err := descendToParent(root, segments)
	if err != nil {
		return err
	}

	switch p.Op {
	case models.PatchOpSet:
		return setAt(parent, lastSeg, p.Value)
	case models.PatchOpMerge:
		return mergeAt(parent, lastSeg, p.Value)
	case models.PatchOpDelete:
		return deleteAt(parent, lastSeg)
	default:
		return fmt.Errorf("%w: unknown op %q", models.ErrPatchPath, p.Op)
	}
}

// descendToParent walks all but the last path segment, creating
// intermediate maps as needed, and returns the container holding the
// final segment plus that segment itself.
func descendToParent(root map[string]interface{}, segments []string) (interface{}, string, error) {
	var cur interface{} = root
	for _, seg := range segments[:len(segments)-1] {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				next = map[string]interface{}{}
				node[seg] = next
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, "", fmt.Errorf("%w: %s", models.ErrPatchPath, seg)
			}
			cur = node[idx]
		default:
			return nil, "", fmt.Errorf("%w: cannot descend into leaf at %q", models.ErrPatchPath, seg)
		}
	}
	return cur, segments[len(segments)-1], nil
}

func setAt(container interface{}, seg string, value interface{}) error {
	switch node := container.(type) {
	case map[string]interface{}:
		node[seg] = value
		return nil
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(node) {
			return fmt.Errorf("%w: %s", models.ErrPatchPath, seg)
		}
		node[idx] = value
		return nil
	default:
		return fmt.Errorf("%w: cannot set into leaf", models.ErrPatchPath)
	}
}

func mergeAt(container interface{}, seg string, value interface{}) error {
	node, ok := container.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: merge target container is not a map", models.ErrPatchPath)
	}
	incoming, ok := value.(map[string]interface{})
	if !ok {
		// Merging a non-object value into a (possibly missing) key
		// degrades to a plain set, matching the teacher's permissive
		// variable-assignment behavior.
		node[seg] = value
		return nil
	}
	existing, _ := node[seg].(map[string]interface{})
	if existing == nil {
		existing = map[string]interface{}{}
	}
	for k, v := range incoming {
		existing[k] = v
	}
	node[seg] = existing
	return nil
}

func deleteAt(container interface{}, seg string) error {
	switch node := container.(type) {
	case map[string]interface{}:
		delete(node, seg)
		return nil
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(node) {
			return fmt.Errorf("%w: %s", models.ErrPatchPath, seg)
		}
		node[idx] = nil
		return nil
	default:
		return fmt.Errorf("%w: cannot delete from leaf", models.ErrPatchPath)
	}
}
