package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDecode(t *testing.T) {
	cfg := Default()
	err := Decode([]byte(`
log_level: debug
storage:
  driver: sqlite
  sqlite_path: /tmp/lab.db
seed:
  enabled: true
  seed: 9
  bounds:
    facilities: {min: 1, max: 2}
export:
  s3:
    bucket: lab-exports
    path_style: true
  redact: true
  encryption:
    key: a2V5
    fallback_keys: [b2xk]
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/lab.db", cfg.Storage.SQLitePath)
	assert.Equal(t, ".strata/data", cfg.Storage.DataDir, "unset keys keep defaults")
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, uint64(9), cfg.Seed.Seed)
	assert.Equal(t, 2, cfg.Seed.Bounds.Facilities.Max)
	assert.Equal(t, 2, cfg.Seed.Bounds.Fridges.Min, "sibling bounds keep defaults")
	assert.Equal(t, "lab-exports", cfg.Export.S3.Bucket)
	assert.True(t, cfg.Export.S3.PathStyle)
	assert.True(t, cfg.Export.Redact)
	assert.True(t, cfg.Export.Encryption.Enabled())
	assert.Equal(t, []string{"b2xk"}, cfg.Export.Encryption.FallbackKeys)
	assert.False(t, Default().Export.Encryption.Enabled())
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := Decode([]byte("storage:\n  drvier: memory\n"), &cfg)
	assert.ErrorContains(t, err, "drvier")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, env(map[string]string{
		"STRATA_STORAGE_DRIVER":     "Postgres",
		"STRATA_POSTGRES_DSN":       "postgres://db/lab",
		"STRATA_SEED_ENABLED":       "true",
		"STRATA_SEED_DETERMINISTIC": "false",
		"STRATA_LOG_LEVEL":          "warn",
		"STRATA_SQLITE_PATH":        "",
		"STRATA_EXPORT_KEY":         "a2V5",
		"STRATA_EXPORT_REDACT":      "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://db/lab", cfg.Storage.PostgresDSN)
	assert.True(t, cfg.Seed.Enabled)
	assert.False(t, cfg.Seed.Deterministic)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ".strata/strata.db", cfg.Storage.SQLitePath, "empty values are ignored")
	assert.Equal(t, "a2V5", cfg.Export.Encryption.Key)
	assert.True(t, cfg.Export.Redact)

	err = ApplyEnv(&cfg, env(map[string]string{"STRATA_SEED_ENABLED": "maybe"}))
	assert.ErrorContains(t, err, "STRATA_SEED_ENABLED")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = DriverRedis
	assert.Error(t, cfg.Validate())
	cfg.Storage.RedisAddr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o644))
	t.Setenv("STRATA_STORAGE_DRIVER", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}
