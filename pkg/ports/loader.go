package ports

import "context"

// PatchLoader defines where workflow patch documents come from.
// This allows the patch library (Loam, FS, Memory) to be decoupled.
type PatchLoader interface {
	// GetPatch retrieves the raw YAML of a patch document by ID.
	GetPatch(ctx context.Context, id string) ([]byte, error)

	// ListPatches returns the IDs of all available patch documents, sorted.
	ListPatches(ctx context.Context) ([]string, error)
}
