package install_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) (*install.Env, *memory.Store) {
	t.Helper()
	patches, err := install.DefaultPatches()
	require.NoError(t, err)
	repo := memory.NewStore()
	return &install.Env{Repo: repo, Patches: patches}, repo
}

func TestRunner_DefaultSequence(t *testing.T) {
	ctx := context.Background()
	env, repo := newEnv(t)
	var observed []string
	r := install.NewRunner(memory.NewLocker(), install.WithObserver(func(res install.StepResult) {
		observed = append(observed, res.Name)
	}))

	results, err := r.Run(ctx, env)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, r.Steps(), observed)
	assert.Equal(t, []string{
		install.StepBootstrapWorkflows, install.StepReindex, install.StepHideActions,
		install.StepWorkflows, install.StepDemoData,
	}, observed)

	def, err := repo.GetWorkflow(ctx, domain.SampleWorkflowID)
	require.NoError(t, err)
	assert.Contains(t, def.States, domain.StateStored)
	assert.Equal(t, []string{"cancel", "store", "submit"}, def.States[domain.StateSampleReceived].Transitions)

	hidden, err := repo.GetSetting(ctx, domain.SettingHiddenActions)
	require.NoError(t, err)
	assert.Equal(t, install.HiddenActions, hidden)

	facilities, err := repo.ListItems(ctx, domain.KindFacility)
	require.NoError(t, err)
	assert.Empty(t, facilities, "demo data is disabled by default")

	t.Run("second run is a no-op", func(t *testing.T) {
		_, err := r.Run(ctx, env)
		require.NoError(t, err)
		again, err := repo.GetWorkflow(ctx, domain.SampleWorkflowID)
		require.NoError(t, err)
		assert.True(t, domain.Equal(def, again))
		hidden, err := repo.GetSetting(ctx, domain.SettingHiddenActions)
		require.NoError(t, err)
		assert.Equal(t, install.HiddenActions, hidden)
	})
}

func TestRunner_KeepsExistingHiddenActions(t *testing.T) {
	ctx := context.Background()
	env, repo := newEnv(t)
	require.NoError(t, repo.SetSetting(ctx, domain.SettingHiddenActions, []string{"zz/other"}))

	_, err := install.NewRunner(memory.NewLocker()).Run(ctx, env)
	require.NoError(t, err)

	hidden, err := repo.GetSetting(ctx, domain.SettingHiddenActions)
	require.NoError(t, err)
	assert.Equal(t, []string{"bika_setup/bika_storagelocations", "zz/other"}, hidden)
}

func TestRunner_MissingWorkflowIsNotFatal(t *testing.T) {
	ctx := context.Background()
	env, _ := newEnv(t)
	env.Patches = append(env.Patches, &domain.WorkflowPatch{
		WorkflowID: "invoice_workflow",
		States:     map[string]domain.StatePatch{"paid": {}},
	})

	results, err := install.NewRunner(memory.NewLocker()).Run(ctx, env)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestRunner_DemoData(t *testing.T) {
	ctx := context.Background()
	env, repo := newEnv(t)
	env.Seed = seed.DefaultConfig()

	_, err := install.NewRunner(memory.NewLocker()).Run(ctx, env)
	require.NoError(t, err)

	facilities, err := repo.ListItems(ctx, domain.KindFacility)
	require.NoError(t, err)
	assert.Len(t, facilities, 3)

	_, err = install.NewRunner(memory.NewLocker()).Run(ctx, env)
	require.NoError(t, err)
	facilities, err = repo.ListItems(ctx, domain.KindFacility)
	require.NoError(t, err)
	assert.Len(t, facilities, 3, "seeding skips a populated repository")
}

func TestRunner_FailingStepAborts(t *testing.T) {
	ctx := context.Background()
	env, _ := newEnv(t)
	boom := errors.New("boom")
	ran := false

	r := install.NewRunner(memory.NewLocker(), install.WithSteps(
		install.StepFunc{ID: "fail", Fn: func(context.Context, *install.Env) error { return boom }},
		install.StepFunc{ID: "after", Fn: func(context.Context, *install.Env) error { ran = true; return nil }},
	))

	results, err := r.Run(ctx, env)
	assert.ErrorIs(t, err, install.ErrStepFailed)
	assert.ErrorIs(t, err, boom)
	require.Len(t, results, 1)
	assert.False(t, ran)
}

func TestRunner_HoldsLock(t *testing.T) {
	ctx := context.Background()
	env, _ := newEnv(t)
	locker := memory.NewLocker()

	unlock, err := locker.Lock(ctx, install.LockKey, time.Minute)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = install.NewRunner(locker).Run(short, env)
	require.Error(t, err)

	require.NoError(t, unlock(ctx))
	_, err = install.NewRunner(locker).Run(ctx, env)
	require.NoError(t, err)
}

func TestReindex_RepairsReferences(t *testing.T) {
	ctx := context.Background()
	env, repo := newEnv(t)

	facility := domain.NewFacility("f1", "Main", domain.FacilityInfo{})
	fridge, err := domain.NewContainer("c1", domain.KindContainer, "Fridge", 2, 2)
	require.NoError(t, err)
	fridge.ParentID = "somewhere-else"
	require.NoError(t, facility.AddChild(fridge.Ref()))
	require.NoError(t, facility.AddChild(domain.ChildRef{ID: "ghost", Kind: domain.KindContainer}))
	require.NoError(t, repo.SaveItem(ctx, facility))
	require.NoError(t, repo.SaveItem(ctx, fridge))

	r := install.NewRunner(memory.NewLocker(), install.WithSteps(install.DefaultSteps()[1]))
	_, err = r.Run(ctx, env)
	require.NoError(t, err)

	f, err := repo.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChildRef{fridge.Ref()}, f.ChildRefs())
	c, err := repo.GetItem(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "f1", c.ParentID)
}

func TestLibraryPatches(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewLoader(map[string]string{
		"sample_workflow": "states:\n  stored:\n    title: Archived\n",
	})

	patches, err := install.LibraryPatches(ctx, loader)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, domain.SampleWorkflowID, patches[0].WorkflowID)
	require.NotNil(t, patches[0].States[domain.StateStored].Title)
	assert.Equal(t, "Archived", *patches[0].States[domain.StateStored].Title)
}
