package storage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clerk = workflow.Actor{ID: "clerk", Roles: []string{"LabClerk"}}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func installWorkflow(t *testing.T, repo *memory.Store) {
	t.Helper()
	defs, err := workflow.BaseDefinitions()
	require.NoError(t, err)
	for _, d := range defs {
		require.NoError(t, repo.SaveWorkflow(context.Background(), d))
	}
	patches, err := workflow.StoragePatches()
	require.NoError(t, err)
	for _, p := range patches {
		applied, err := workflow.NewPatcher().ApplyStored(context.Background(), repo, p)
		require.NoError(t, err)
		require.True(t, applied)
	}
}

func newService(t *testing.T, opts ...storage.Option) (*storage.Service, *memory.Store) {
	t.Helper()
	repo := memory.NewStore()
	installWorkflow(t, repo)
	opts = append([]storage.Option{storage.WithIDGenerator(sequentialIDs())}, opts...)
	return storage.NewService(repo, opts...), repo
}

// layout creates facility > fridge (rows x cols) > box (2x2).
func layout(t *testing.T, svc *storage.Service, fridgeRows, fridgeCols int) (facility, fridge, box *domain.Item) {
	t.Helper()
	ctx := context.Background()
	facility, err := svc.CreateFacility(ctx, "Main", domain.FacilityInfo{Phone: "123", Email: "main@example.com"})
	require.NoError(t, err)
	fridge, err = svc.CreateContainer(ctx, facility.ID, domain.KindContainer, "Fridge", fridgeRows, fridgeCols)
	require.NoError(t, err)
	box, err = svc.CreateContainer(ctx, fridge.ID, domain.KindSamplesContainer, "Box", 2, 2)
	require.NoError(t, err)
	return facility, fridge, box
}

func receivedSample(t *testing.T, svc *storage.Service, title string) *domain.Sample {
	t.Helper()
	ctx := context.Background()
	sample, err := svc.RegisterSample(ctx, title)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSampleDue, sample.ReviewState)
	sample, err = svc.FireSample(ctx, sample.ID, "receive", clerk)
	require.NoError(t, err)
	require.Equal(t, domain.StateSampleReceived, sample.ReviewState)
	return sample
}

func TestCreateContainer_Hierarchy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	facility, fridge, box := layout(t, svc, 2, 2)

	_, err := svc.CreateContainer(ctx, facility.ID, domain.KindSamplesContainer, "Loose box", 2, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidHierarchy)

	_, err = svc.CreateContainer(ctx, box.ID, domain.KindContainer, "Nested", 1, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidHierarchy)

	_, err = svc.CreateContainer(ctx, fridge.ID, domain.KindContainer, "Flat", 0, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidDimensions)

	_, err = svc.CreateContainer(ctx, "missing", domain.KindContainer, "Orphan", 1, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	loaded, err := svc.Get(ctx, fridge.ID)
	require.NoError(t, err)
	assert.Equal(t, facility.ID, loaded.ParentID)
	assert.Equal(t, []domain.ChildRef{box.Ref()}, loaded.ChildRefs())
}

func TestCreateContainer_ParentCapacity(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	_, fridge, _ := layout(t, svc, 1, 1)

	_, err := svc.CreateContainer(ctx, fridge.ID, domain.KindSamplesContainer, "Extra", 2, 2)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	boxes, err := repo.ListItems(ctx, domain.KindSamplesContainer)
	require.NoError(t, err)
	assert.Len(t, boxes, 1, "rejected container must not be persisted")
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	facility, fridgeA, box := layout(t, svc, 2, 2)
	fridgeB, err := svc.CreateContainer(ctx, facility.ID, domain.KindContainer, "Fridge B", 1, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Move(ctx, box.ID, fridgeB.ID))

	a, _ := svc.Get(ctx, fridgeA.ID)
	b, _ := svc.Get(ctx, fridgeB.ID)
	moved, _ := svc.Get(ctx, box.ID)
	assert.Equal(t, 0, a.OccupiedCount())
	assert.Equal(t, []domain.ChildRef{box.Ref()}, b.ChildRefs())
	assert.Equal(t, fridgeB.ID, moved.ParentID)

	t.Run("full target leaves everything in place", func(t *testing.T) {
		other, err := svc.CreateContainer(ctx, fridgeA.ID, domain.KindSamplesContainer, "Other", 1, 1)
		require.NoError(t, err)

		err = svc.Move(ctx, other.ID, fridgeB.ID)
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

		a, _ := svc.Get(ctx, fridgeA.ID)
		assert.True(t, a.HasChild(other.ID))
	})

	t.Run("cannot move below itself", func(t *testing.T) {
		rack, err := svc.CreateContainer(ctx, fridgeA.ID, domain.KindContainer, "Rack", 2, 2)
		require.NoError(t, err)
		inner, err := svc.CreateContainer(ctx, rack.ID, domain.KindContainer, "Inner", 1, 1)
		require.NoError(t, err)

		err = svc.Move(ctx, rack.ID, inner.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidHierarchy)
	})

	t.Run("facilities cannot move", func(t *testing.T) {
		err := svc.Move(ctx, facility.ID, fridgeA.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidHierarchy)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, fridge, box := layout(t, svc, 2, 2)

	assert.ErrorIs(t, svc.Delete(ctx, fridge.ID), domain.ErrNotEmpty)

	require.NoError(t, svc.Delete(ctx, box.ID))
	f, err := svc.Get(ctx, fridge.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.OccupiedCount())
	_, err = svc.Get(ctx, box.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreAndRecoverSample(t *testing.T) {
	ctx := context.Background()
	var events []domain.EventType
	svc, _ := newService(t, storage.WithHooks(domain.LifecycleHooks{
		OnSampleChange: func(_ context.Context, e *domain.SampleEvent) { events = append(events, e.Type) },
	}))
	_, _, box := layout(t, svc, 2, 2)
	sample := receivedSample(t, svc, "Blood 01")

	stored, err := svc.StoreSample(ctx, sample.ID, box.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, domain.StateStored, stored.ReviewState)
	assert.Equal(t, box.ID, stored.ContainerID)

	b, _ := svc.Get(ctx, box.ID)
	assert.Equal(t, 1, b.OccupiedCount())

	slots, err := svc.Children(ctx, box.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, storage.Slot{Row: 1, Column: 1, Ref: sample.Ref(), Title: "Blood 01"}, slots[0])

	_, err = svc.StoreSample(ctx, sample.ID, box.ID, clerk)
	assert.ErrorIs(t, err, domain.ErrTransitionNotAllowed, "a stored sample has no store transition")

	recovered, err := svc.RecoverSample(ctx, sample.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSampleReceived, recovered.ReviewState)
	assert.Empty(t, recovered.ContainerID)

	b, _ = svc.Get(ctx, box.ID)
	assert.Equal(t, 0, b.OccupiedCount())
	assert.Equal(t, []domain.EventType{domain.EventSampleStored, domain.EventSampleRemoved}, events)

	_, err = svc.RecoverSample(ctx, sample.ID, clerk)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreSample_FullBox(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, _, box := layout(t, svc, 2, 2)

	for n := range 4 {
		s := receivedSample(t, svc, fmt.Sprintf("S%d", n))
		_, err := svc.StoreSample(ctx, s.ID, box.ID, clerk)
		require.NoError(t, err)
	}

	fifth := receivedSample(t, svc, "S4")
	_, err := svc.StoreSample(ctx, fifth.ID, box.ID, clerk)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	again, err := svc.GetSample(ctx, fifth.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSampleReceived, again.ReviewState)
	assert.False(t, again.Stored())
}

func TestStoreSample_RejectsNonBoxes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, fridge, _ := layout(t, svc, 2, 2)
	sample := receivedSample(t, svc, "S")

	_, err := svc.StoreSample(ctx, sample.ID, fridge.ID, clerk)
	assert.ErrorIs(t, err, domain.ErrInvalidHierarchy)

	_, err = svc.FireSample(ctx, sample.ID, domain.TransitionStore, clerk)
	assert.ErrorIs(t, err, domain.ErrTransitionNotAllowed)
}

type failingSamples struct {
	*memory.Store
}

func (f failingSamples) SaveSample(ctx context.Context, s *domain.Sample) error {
	if s.ReviewState == domain.StateStored {
		return errors.New("disk full")
	}
	return f.Store.SaveSample(ctx, s)
}

func TestStoreSample_RollsBackBox(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	installWorkflow(t, repo)
	svc := storage.NewService(failingSamples{repo})
	_, _, box := layout(t, svc, 1, 1)
	sample := receivedSample(t, svc, "S")

	_, err := svc.StoreSample(ctx, sample.ID, box.ID, clerk)
	require.Error(t, err)

	b, err := svc.Get(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.OccupiedCount())
}

func TestListFacilitiesAndTree(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, _, box := layout(t, svc, 2, 2)
	_, err := svc.CreateFacility(ctx, "Annex", domain.FacilityInfo{})
	require.NoError(t, err)

	sample := receivedSample(t, svc, "S")
	_, err = svc.StoreSample(ctx, sample.ID, box.ID, clerk)
	require.NoError(t, err)

	rows, err := svc.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Annex", rows[0].Title)
	assert.Equal(t, "Main", rows[1].Title)

	main := rows[1]
	assert.Equal(t, 1, main.Samples)
	assert.Equal(t, 4, main.Capacity)
	assert.InDelta(t, 25.0, main.Usage, 0.001)
	assert.Equal(t, 1, main.Containers)
	assert.Equal(t, "main@example.com", main.Email)

	tree, err := svc.Tree(ctx, "")
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	fridgeNode := tree.Children[1].Children[0]
	boxNode := fridgeNode.Children[0]
	assert.Equal(t, "Box", boxNode.Title())
	require.Len(t, boxNode.Children, 1)
	assert.Equal(t, "S", boxNode.Children[0].Title())

	_, err = svc.Tree(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
