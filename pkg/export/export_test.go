package export_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	blobs map[string][]byte
}

func (c *captureSink) Put(_ context.Context, key string, body []byte, _ string) error {
	if c.blobs == nil {
		c.blobs = map[string][]byte{}
	}
	c.blobs[key] = body
	return nil
}

func TestExportAndRestore(t *testing.T) {
	ctx := context.Background()
	src := memory.NewStore()
	require.NoError(t, src.SaveItem(ctx, domain.NewFacility("f1", "Main", domain.FacilityInfo{Phone: "1"})))
	require.NoError(t, src.SaveSample(ctx, &domain.Sample{ID: "s1", Title: "S", ReviewState: domain.StateSampleDue}))
	def := domain.NewDefinition("wf", "Workflow")
	def.Initial = "a"
	def.AddState("a")
	require.NoError(t, src.SaveWorkflow(ctx, def))
	require.NoError(t, src.SetSetting(ctx, domain.SettingHiddenActions, []string{"x"}))

	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	sink := &captureSink{}
	key, err := export.New(sink, export.WithClock(func() time.Time { return at })).Export(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/strata-20240301T103000Z.json", key)
	require.Contains(t, sink.blobs, key)

	snap, err := export.Decode(sink.blobs[key])
	require.NoError(t, err)
	assert.Equal(t, export.FormatVersion, snap.Version)
	assert.True(t, at.Equal(snap.ExportedAt))

	dst := memory.NewStore()
	require.NoError(t, export.Restore(ctx, dst, snap))

	item, err := dst.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "1", item.Facility.Phone)
	_, err = dst.GetSample(ctx, "s1")
	assert.NoError(t, err)
	got, err := dst.GetWorkflow(ctx, "wf")
	require.NoError(t, err)
	assert.True(t, domain.Equal(def, got))
	hidden, err := dst.GetSetting(ctx, domain.SettingHiddenActions)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, hidden)
}

func TestRestore_RejectsUnknownVersion(t *testing.T) {
	err := export.Restore(context.Background(), memory.NewStore(), &export.Snapshot{Version: 99})
	assert.Error(t, err)
}
