package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
)

// Loader implements ports.PatchLoader using an in-memory map.
type Loader struct {
	patches map[string][]byte
}

// NewLoader creates a new Loader with the provided raw YAML documents.
func NewLoader(data map[string]string) *Loader {
	patches := make(map[string][]byte, len(data))
	for k, v := range data {
		patches[k] = []byte(v)
	}
	return &Loader{patches: patches}
}

// GetPatch retrieves the raw document of a patch by ID.
func (l *Loader) GetPatch(ctx context.Context, id string) ([]byte, error) {
	content, ok := l.patches[id]
	if !ok {
		return nil, fmt.Errorf("%w: patch %s", domain.ErrNotFound, id)
	}
	return content, nil
}

// ListPatches returns all available patch IDs in deterministic order.
func (l *Loader) ListPatches(ctx context.Context) ([]string, error) {
	return slices.Sorted(maps.Keys(l.patches)), nil
}
