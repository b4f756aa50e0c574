// Package config loads strata.yaml and applies STRATA_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/adapters/blob"
	"github.com/aretw0/strata/pkg/seed"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "strata.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STRATA_"

// Driver selects the repository backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
)

// Storage selects and configures the repository backend.
type Storage struct {
	Driver      Driver `mapstructure:"driver" yaml:"driver"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// Patches points at an optional loam patch library.
type Patches struct {
	Library string `mapstructure:"library" yaml:"library"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Encryption holds base64 AES-256 keys. Snapshots are sealed with Key;
// FallbackKeys are only tried when restoring.
type Encryption struct {
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

// Enabled reports whether an active key is configured.
func (e Encryption) Enabled() bool {
	return e.Key != ""
}

// Export configures snapshot destinations. S3 wins when a bucket is set.
// With Redact, contact fields matching RedactKeys (or the default phone,
// email and street patterns) are masked before upload.
type Export struct {
	Dir        string        `mapstructure:"dir" yaml:"dir"`
	S3         blob.S3Config `mapstructure:"s3" yaml:"s3"`
	Redact     bool          `mapstructure:"redact" yaml:"redact"`
	RedactKeys []string      `mapstructure:"redact_keys" yaml:"redact_keys"`
	Encryption Encryption    `mapstructure:"encryption" yaml:"encryption"`
}

// Config is the root of strata.yaml.
type Config struct {
	LogLevel  string      `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string      `mapstructure:"log_format" yaml:"log_format"`
	Storage   Storage     `mapstructure:"storage" yaml:"storage"`
	Patches   Patches     `mapstructure:"patches" yaml:"patches"`
	Seed      seed.Config `mapstructure:"seed" yaml:"seed"`
	HTTP      HTTP        `mapstructure:"http" yaml:"http"`
	Export    Export      `mapstructure:"export" yaml:"export"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	sc := seed.DefaultConfig()
	sc.Enabled = false
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Storage: Storage{
			Driver:     DriverFile,
			DataDir:    ".strata/data",
			SQLitePath: ".strata/strata.db",
		},
		Seed:   sc,
		HTTP:   HTTP{Addr: ":8080"},
		Export: Export{Dir: ".strata/exports"},
	}
}

// Load reads path on top of Default and applies environment overrides.
// An empty path loads DefaultFile when it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode merges a YAML document into cfg. Unknown keys are rejected.
func Decode(raw []byte, cfg *Config) error {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	if generic == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(generic)
}

// ApplyEnv overrides cfg from STRATA_* variables read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	driver := string(cfg.Storage.Driver)
	str("STORAGE_DRIVER", &driver)
	cfg.Storage.Driver = Driver(strings.ToLower(driver))
	str("DATA_DIR", &cfg.Storage.DataDir)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("PATCH_LIBRARY", &cfg.Patches.Library)
	str("EXPORT_S3_BUCKET", &cfg.Export.S3.Bucket)
	str("EXPORT_S3_ENDPOINT", &cfg.Export.S3.Endpoint)
	str("EXPORT_KEY", &cfg.Export.Encryption.Key)

	return errors.Join(
		boolean("SEED_ENABLED", &cfg.Seed.Enabled),
		boolean("SEED_DETERMINISTIC", &cfg.Seed.Deterministic),
		boolean("EXPORT_REDACT", &cfg.Export.Redact),
	)
}

// Validate checks the storage selection.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverPostgres:
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage driver redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
