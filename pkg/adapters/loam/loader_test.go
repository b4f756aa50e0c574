package loam

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const storagePatchDoc = `---
workflow: sample_workflow
states:
  sample_received:
    preserve_transitions: true
    transitions: [store]
transitions:
  store:
    title: Store
    new_state: stored
---
Adds the store transition to received samples.`

func TestLoader_Contract(t *testing.T) {
	_, repo := testutils.SetupPatchLibrary(t, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, core.Document{ID: "storage.md", Content: storagePatchDoc}))
	require.NoError(t, repo.Save(ctx, core.Document{ID: "full.md", Content: `---
workflows:
  other_workflow:
    states:
      open: {}
---`}))

	loader := New(loam.NewTypedRepository[PatchMetadata](repo))
	ports.RunPatchLoaderContract(t, loader, map[string]string{
		"storage": "sample_workflow",
		"full":    "other_workflow",
	})
}

func TestLoader_GetPatch_NormalisesSingleWorkflow(t *testing.T) {
	_, repo := testutils.SetupPatchLibrary(t, map[string]string{"storage.md": storagePatchDoc})

	loader := New(loam.NewTypedRepository[PatchMetadata](repo))
	raw, err := loader.GetPatch(context.Background(), "storage")
	require.NoError(t, err)

	var doc struct {
		Workflows map[string]struct {
			States      map[string]any `yaml:"states"`
			Transitions map[string]any `yaml:"transitions"`
		} `yaml:"workflows"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	wf, ok := doc.Workflows[domain.SampleWorkflowID]
	require.True(t, ok)
	assert.Contains(t, wf.States, domain.StateSampleReceived)
	assert.Contains(t, wf.Transitions, domain.TransitionStore)
}

func TestLoader_GetPatch_RequiresTarget(t *testing.T) {
	_, repo := testutils.SetupPatchLibrary(t, map[string]string{"orphan.md": "---\nstates: {}\n---\n"})

	loader := New(loam.NewTypedRepository[PatchMetadata](repo))
	_, err := loader.GetPatch(context.Background(), "orphan")
	assert.ErrorIs(t, err, domain.ErrInvalidPatch)
}

func TestLoader_ListPatches_DetectsCollisions(t *testing.T) {
	_, repo := testutils.SetupPatchLibrary(t, map[string]string{
		"foo.md":   "---\nid: foo\nworkflow: a\n---\n",
		"foo.json": `{"id": "foo", "workflow": "b"}`,
	})

	loader := New(loam.NewTypedRepository[PatchMetadata](repo))
	_, err := loader.ListPatches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}
