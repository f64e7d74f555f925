package runtime

import (
	"errors"
	"testing"

	"github.com/smilemakc/chainflow/pkg/models"
)

func TestTree_GetSetMergeDelete(t *testing.T) {
	tree := New()

	err := tree.Apply([]models.Patch{
		models.SetPatch("nodes.n1.outputs", map[string]interface{}{"balance": "100"}),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := tree.Get("nodes.n1.outputs.balance")
	if !ok || v != "100" {
		t.Fatalf("expected balance=100, got %v (ok=%v)", v, ok)
	}

	err = tree.Apply([]models.Patch{
		models.MergePatch("nodes.n1.outputs", map[string]interface{}{"decimals": "18"}),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := tree.Get("nodes.n1.outputs.balance"); !ok || v != "100" {
		t.Fatalf("merge should preserve existing key, got %v (ok=%v)", v, ok)
	}
	if v, ok := tree.Get("nodes.n1.outputs.decimals"); !ok || v != "18" {
		t.Fatalf("merge should add new key, got %v (ok=%v)", v, ok)
	}

	err = tree.Apply([]models.Patch{models.DeletePatch("nodes.n1.outputs.balance")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree.Get("nodes.n1.outputs.balance"); ok {
		t.Fatal("expected balance to be deleted")
	}
}

func TestTree_Apply_GuardRejectsOutOfScopePath(t *testing.T) {
	tree := New()
	guard := &Guard{AllowedPrefixes: []string{"nodes.n1"}}

	err := tree.Apply([]models.Patch{models.SetPatch("nodes.n2.outputs", "x")}, guard)
	if !errors.Is(err, models.ErrPatchRejected) {
		t.Fatalf("expected ErrPatchRejected, got %v", err)
	}

	// allowed path still succeeds
	err = tree.Apply([]models.Patch{models.SetPatch("nodes.n1.outputs", "ok")}, guard)
	if err != nil {
		t.Fatalf("unexpected error for allowed path: %v", err)
	}
}

func TestTree_MergeDoesNotDeepMerge(t *testing.T) {
	tree := New()
	tree.Apply([]models.Patch{
		models.SetPatch("calculated", map[string]interface{}{
			"a": map[string]interface{}{"x": 1, "y": 2},
		}),
	}, nil)

	tree.Apply([]models.Patch{
		models.MergePatch("calculated", map[string]interface{}{
			"a": map[string]interface{}{"x": 99},
		}),
	}, nil)

	v, _ := tree.Get("calculated.a")
	inner, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", v)
	}
	if _, stillThere := inner["y"]; stillThere {
		t.Fatal("shallow merge must overwrite the whole sub-object, not deep-merge it")
	}
	if inner["x"] != 99 {
		t.Fatalf("expected x=99, got %v", inner["x"])
	}
}

func TestTree_Snapshot_IsDeepCopy(t *testing.T) {
	tree := New()
	tree.Apply([]models.Patch{models.SetPatch("inputs.amount", "1.5")}, nil)

	snap := tree.Snapshot()
	snapInputs := snap["inputs"].(map[string]interface{})
	snapInputs["amount"] = "changed"

	v, _ := tree.Get("inputs.amount")
	if v != "1.5" {
		t.Fatalf("snapshot mutation leaked into tree: %v", v)
	}
}
