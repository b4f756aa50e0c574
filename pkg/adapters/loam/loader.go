package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/strata/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Loader adapts the Loam library to the ports.PatchLoader interface.
// Documents are served as YAML patch documents with a `workflows` root.
type Loader struct {
	Repo *loam.TypedRepository[PatchMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[PatchMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[PatchMetadata](repo)), nil
}

// GetPatch retrieves a patch document and normalises it to the `workflows:` form.
func (l *Loader) GetPatch(ctx context.Context, id string) ([]byte, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: patch %s: %v", domain.ErrNotFound, id, err)
	}

	root, err := patchDocument(doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch %s: %w", id, err)
	}
	return out, nil
}

func patchDocument(docID string, meta PatchMetadata) (map[string]any, error) {
	if len(meta.Workflows) > 0 {
		return map[string]any{"workflows": meta.Workflows}, nil
	}
	if meta.Workflow == "" {
		return nil, fmt.Errorf("%w: document %s declares neither workflows nor workflow", domain.ErrInvalidPatch, docID)
	}

	body := map[string]any{}
	if meta.Permissions != nil {
		body["permissions"] = meta.Permissions
	}
	if meta.States != nil {
		body["states"] = meta.States
	}
	if meta.Transitions != nil {
		body["transitions"] = meta.Transitions
	}
	return map[string]any{"workflows": map[string]any{meta.Workflow: body}}, nil
}

// ListPatches lists all patch documents in the repository.
func (l *Loader) ListPatches(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
