package executor

import "github.com/smilemakc/chainflow/pkg/models"

// patchesForWrites turns a node's declared Write paths into concrete
// Patch operations against value, honoring each Write's Mode. Grounded
// on pkg/models/patch.go's Set/Merge helpers — this is the only place
// an executor is allowed to decide where its result lands, the node's
// Writes list being the allowlist the scheduler's guard later checks.
func patchesForWrites(writes []models.Write, value interface{}) []models.Patch {
	patches := make([]models.Patch, 0, len(writes))
	for _, w := range writes {
		switch w.Mode {
		case models.WriteModeMerge:
			patches = append(patches, models.MergePatch(w.Path, value))
		default:
			patches = append(patches, models.SetPatch(w.Path, value))
		}
	}
	return patches
}
