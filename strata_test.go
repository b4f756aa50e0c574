package strata_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strata.Version)
	assert.NotContains(t, strata.Version, "\n")
}

func TestOpen_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		setup func(dir string, cfg *strata.Config)
	}{
		{"memory", func(_ string, cfg *strata.Config) { cfg.Storage.Driver = config.DriverMemory }},
		{"file", func(dir string, cfg *strata.Config) {
			cfg.Storage.Driver = config.DriverFile
			cfg.Storage.DataDir = filepath.Join(dir, "data")
		}},
		{"sqlite", func(dir string, cfg *strata.Config) {
			cfg.Storage.Driver = config.DriverSQLite
			cfg.Storage.SQLitePath = filepath.Join(dir, "db", "strata.db")
		}},
		{"redis", func(_ string, cfg *strata.Config) {
			cfg.Storage.Driver = config.DriverRedis
			cfg.Storage.RedisAddr = mr.Addr()
			cfg.Storage.RedisPrefix = "test:"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := strata.DefaultConfig()
			tt.setup(t.TempDir(), &cfg)

			app, err := strata.Open(ctx, cfg)
			require.NoError(t, err)
			defer func() { assert.NoError(t, app.Close()) }()

			results, err := app.Install(ctx)
			require.NoError(t, err)
			require.Len(t, results, 5)

			def, err := app.Repo.GetWorkflow(ctx, domain.SampleWorkflowID)
			require.NoError(t, err)
			_, ok := def.State(domain.StateStored)
			assert.True(t, ok)

			// A second install changes nothing.
			_, err = app.Install(ctx)
			require.NoError(t, err)
			again, err := app.Repo.GetWorkflow(ctx, domain.SampleWorkflowID)
			require.NoError(t, err)
			assert.Equal(t, def, again)

			n, err := testutil.GatherAndCount(app.Metrics.Registry(), "strata_install_step_duration_seconds")
			require.NoError(t, err)
			assert.Equal(t, 5, n)
		})
	}
}

func TestOpen_RedisSharesLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.RedisAddr = mr.Addr()

	app, err := strata.Open(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()
	assert.IsType(t, &redisAdapter.Locker{}, app.Locker)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = "mongo"
	_, err := strata.Open(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Storage.Driver = config.DriverRedis
	_, err = strata.Open(context.Background(), cfg)
	assert.Error(t, err, "redis requires an address")
}

func TestOpen_WithRepository(t *testing.T) {
	repo := memory.NewStore()
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = "ignored"

	app, err := strata.Open(context.Background(), cfg, strata.WithRepository(repo))
	require.NoError(t, err)
	assert.Same(t, repo, app.Repo)
	assert.IsType(t, &memory.Locker{}, app.Locker)
}

func TestInstall_SeedsDemoData(t *testing.T) {
	ctx := context.Background()
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Seed.Enabled = true
	cfg.Seed.Deterministic = true

	app, err := strata.Open(ctx, cfg)
	require.NoError(t, err)
	_, err = app.Install(ctx)
	require.NoError(t, err)

	rows, err := app.Storage.ListFacilities(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestInstall_LockHeld(t *testing.T) {
	ctx := context.Background()
	locker := memory.NewLocker()
	unlock, err := locker.Lock(ctx, install.LockKey, install.DefaultLockTTL)
	require.NoError(t, err)
	defer unlock(ctx)

	app, err := strata.Open(ctx, strata.DefaultConfig(), strata.WithRepository(memory.NewStore()), strata.WithLocker(locker))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = app.Install(cancelled)
	assert.Error(t, err)
}

func TestExporter_Dir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Export.Dir = dir

	app, err := strata.Open(ctx, cfg)
	require.NoError(t, err)
	_, err = app.Install(ctx)
	require.NoError(t, err)

	exp, err := app.Exporter(ctx)
	require.NoError(t, err)
	key, err := exp.Export(ctx, app.Repo)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), domain.SampleWorkflowID)
}

func newKey(t *testing.T) string {
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(k)
}

func TestExporter_RedactedAndEncrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Export.Dir = dir
	cfg.Export.Redact = true
	cfg.Export.Encryption.Key = newKey(t)

	app, err := strata.Open(ctx, cfg)
	require.NoError(t, err)
	_, err = app.Install(ctx)
	require.NoError(t, err)
	facility, err := app.Storage.CreateFacility(ctx, "Main", domain.FacilityInfo{
		Email:   "main@example.com",
		Address: domain.Address{Street: "1 Lab Road", City: "Porto"},
	})
	require.NoError(t, err)

	exp, err := app.Exporter(ctx)
	require.NoError(t, err)
	key, err := exp.Export(ctx, app.Repo)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	require.True(t, middleware.IsEncrypted(raw))
	assert.NotContains(t, string(raw), "example.com")

	snap, err := app.DecodeSnapshot(raw)
	require.NoError(t, err)
	var found *domain.Item
	for _, it := range snap.Items {
		if it.ID == facility.ID {
			found = it
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, middleware.Mask, found.Facility.Email)
	assert.Equal(t, middleware.Mask, found.Facility.Address.Street)
	assert.Equal(t, "Porto", found.Facility.Address.City)

	// A rotated key still opens the snapshot through the fallback list.
	rotated := cfg
	rotated.Export.Encryption.FallbackKeys = []string{cfg.Export.Encryption.Key}
	rotated.Export.Encryption.Key = newKey(t)
	other, err := strata.Open(ctx, rotated)
	require.NoError(t, err)
	_, err = other.DecodeSnapshot(raw)
	assert.NoError(t, err)

	plain := cfg
	plain.Export.Encryption = config.Encryption{}
	noKey, err := strata.Open(ctx, plain)
	require.NoError(t, err)
	_, err = noKey.DecodeSnapshot(raw)
	assert.ErrorContains(t, err, "encrypted")
}
