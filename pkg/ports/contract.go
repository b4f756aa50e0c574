package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryContract runs a suite of tests to verify that a Repository implementation
// adheres to the defined interface contract. The repository must start empty.
func RunRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("Item Save and Get", func(t *testing.T) {
		facility := domain.NewFacility("contract-f1", "Facility", domain.FacilityInfo{
			Phone:   "555-0100",
			Address: domain.Address{City: "Sant Cugat del Valles"},
		})
		require.NoError(t, facility.AddChild(domain.ChildRef{ID: "contract-c1", Kind: domain.KindContainer}))
		require.NoError(t, repo.SaveItem(ctx, facility))

		loaded, err := repo.GetItem(ctx, facility.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.KindFacility, loaded.Kind)
		assert.Equal(t, facility.Children, loaded.Children)
		require.NotNil(t, loaded.Facility)
		assert.Equal(t, "Sant Cugat del Valles", loaded.Facility.Address.City)
		assert.True(t, facility.CreatedAt.Equal(loaded.CreatedAt))

		loaded.Children = nil
		again, err := repo.GetItem(ctx, facility.ID)
		require.NoError(t, err)
		assert.Len(t, again.Children, 1, "stored item must not alias returned values")
	})

	t.Run("Item Not Found", func(t *testing.T) {
		_, err := repo.GetItem(ctx, "contract-missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List Items By Kind", func(t *testing.T) {
		box, err := domain.NewContainer("contract-b2", domain.KindSamplesContainer, "Box", 5, 5)
		require.NoError(t, err)
		rack, err := domain.NewContainer("contract-b1", domain.KindContainer, "Rack", 3, 2)
		require.NoError(t, err)
		require.NoError(t, repo.SaveItem(ctx, box))
		require.NoError(t, repo.SaveItem(ctx, rack))

		boxes, err := repo.ListItems(ctx, domain.KindSamplesContainer)
		require.NoError(t, err)
		require.Len(t, boxes, 1)
		assert.Equal(t, 25, boxes[0].Capacity())

		all, err := repo.ListItems(ctx, "")
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, it := range all {
			ids = append(ids, it.ID)
		}
		assert.Equal(t, []string{"contract-b1", "contract-b2", "contract-f1"}, ids)
	})

	t.Run("Item Delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteItem(ctx, "contract-b2"))
		_, err := repo.GetItem(ctx, "contract-b2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, repo.DeleteItem(ctx, "contract-b2"), "deleting twice is not an error")
	})

	t.Run("Samples", func(t *testing.T) {
		_, err := repo.GetSample(ctx, "contract-s1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		sample := &domain.Sample{
			ID:          "contract-s1",
			Title:       "Blood",
			WorkflowID:  domain.SampleWorkflowID,
			ReviewState: domain.StateSampleReceived,
			UpdatedAt:   time.Now().UTC(),
		}
		require.NoError(t, repo.SaveSample(ctx, sample))

		sample.ContainerID = "contract-b1"
		sample.ReviewState = domain.StateStored
		require.NoError(t, repo.SaveSample(ctx, sample))

		loaded, err := repo.GetSample(ctx, sample.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateStored, loaded.ReviewState)
		assert.Equal(t, "contract-b1", loaded.ContainerID)

		list, err := repo.ListSamples(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Workflows", func(t *testing.T) {
		_, err := repo.GetWorkflow(ctx, "contract-wf")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

		def := domain.NewDefinition("contract-wf", "Contract")
		def.Initial = "a"
		a := def.AddState("a")
		a.Transitions = []string{"go"}
		a.SetPermission(domain.PermView, []string{"Manager"})
		a.SetPermission(domain.PermPublish, nil)
		def.AddState("b")
		tr := def.AddTransition("go")
		tr.NewStateID = "b"
		tr.Guard = domain.Guard{Roles: "Manager"}
		require.NoError(t, repo.SaveWorkflow(ctx, def))

		loaded, err := repo.GetWorkflow(ctx, def.ID)
		require.NoError(t, err)
		assert.True(t, domain.Equal(def, loaded))
		roles, ok := loaded.States["a"].PermissionRoles[domain.PermPublish]
		assert.True(t, ok, "empty grants must survive persistence")
		assert.Empty(t, roles)

		require.NoError(t, repo.SaveWorkflow(ctx, domain.NewDefinition("contract-aa", "")))
		ids, err := repo.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"contract-aa", "contract-wf"}, ids)
	})

	t.Run("Settings", func(t *testing.T) {
		values, err := repo.GetSetting(ctx, "contract-key")
		require.NoError(t, err)
		assert.Nil(t, values)

		require.NoError(t, repo.SetSetting(ctx, "contract-key", []string{"a", "b"}))
		values, err = repo.GetSetting(ctx, "contract-key")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, values)
	})
}

// RunLockerContract verifies that a DistributedLocker grants a key to one holder at a time.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock"

	unlock, err := locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, key, time.Minute)
	assert.Error(t, err, "second holder must not acquire a held lock")

	require.NoError(t, unlock(ctx))

	unlock, err = locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err, "lock must be available after unlock")
	require.NoError(t, unlock(ctx))
}

// RunPatchLoaderContract verifies that a PatchLoader serves exactly the documents in want.
// Each value is a fragment the served document must contain, since adapters may
// normalise the raw text.
func RunPatchLoaderContract(t *testing.T, loader PatchLoader, want map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetPatch", func(t *testing.T) {
		for id, fragment := range want {
			raw, err := loader.GetPatch(ctx, id)
			require.NoError(t, err, "patch %s", id)
			assert.Contains(t, string(raw), fragment)
		}
	})

	t.Run("GetPatch Not Found", func(t *testing.T) {
		_, err := loader.GetPatch(ctx, "non-existent-patch")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListPatches", func(t *testing.T) {
		ids, err := loader.ListPatches(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(want))
		assert.IsNonDecreasing(t, ids)
		for id := range want {
			assert.Contains(t, ids, id)
		}
	})
}
