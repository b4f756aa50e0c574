package strata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/strata/internal/adapters/file"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/pkg/adapters/blob"
	loamAdapter "github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/adapters/sqlstore"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/export"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
)

// Config is the application configuration (strata.yaml plus STRATA_* overrides).
type Config = config.Config

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads path (or strata.yaml when empty) and applies environment overrides.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// App bundles the repository selected by the configuration with the services
// built on top of it.
type App struct {
	Config  Config
	Repo    ports.Repository
	Locker  ports.DistributedLocker
	Storage *storage.Service
	Patcher *workflow.Patcher
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Option configures Open.
type Option func(*App)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithRepository bypasses the configured storage driver.
func WithRepository(repo ports.Repository) Option {
	return func(a *App) {
		a.Repo = repo
	}
}

// WithLocker overrides the install lock implementation.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *App) {
		a.Locker = locker
	}
}

// Open builds the repository named by cfg.Storage.Driver and wires the
// storage service, the patcher and the metrics around it.
func Open(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.Logger == nil {
		app.Logger = logging.NewNop()
	}

	if app.Repo == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := app.openRepository(ctx); err != nil {
			return nil, err
		}
	}
	if app.Locker == nil {
		app.Locker = memory.NewLocker()
	}

	app.Metrics = metrics.New()
	app.Patcher = workflow.NewPatcher(
		workflow.WithLogger(app.Logger),
		workflow.WithObserver(app.Metrics.ObservePatch),
	)
	app.Storage = storage.NewService(app.Repo,
		storage.WithLogger(app.Logger),
		storage.WithMetrics(app.Metrics),
		storage.WithHooks(app.Metrics.Hooks()),
	)
	app.Logger.Debug("Application opened", "driver", cfg.Storage.Driver, "version", Version)
	return app, nil
}

func (a *App) openRepository(ctx context.Context) error {
	st := a.Config.Storage
	switch st.Driver {
	case config.DriverMemory:
		a.Repo = memory.NewStore()
	case config.DriverFile:
		a.Repo = file.New(st.DataDir)
	case config.DriverSQLite, config.DriverPostgres:
		var (
			store *sqlstore.Store
			err   error
		)
		if st.Driver == config.DriverSQLite {
			store, err = sqlstore.OpenSQLite(ctx, st.SQLitePath)
		} else {
			store, err = sqlstore.OpenPostgres(ctx, st.PostgresDSN)
		}
		if err != nil {
			return fmt.Errorf("failed to open %s repository: %w", st.Driver, err)
		}
		a.Repo = store
		a.closers = append(a.closers, store.Close)
	case config.DriverRedis:
		var opts []redisAdapter.Option
		if st.RedisPrefix != "" {
			opts = append(opts, redisAdapter.WithPrefix(st.RedisPrefix))
		}
		store := redisAdapter.New(st.RedisAddr, "", 0, opts...)
		a.Repo = store
		if a.Locker == nil {
			prefix := st.RedisPrefix
			if prefix == "" {
				prefix = "strata:"
			}
			a.Locker = redisAdapter.NewLocker(store.Client(), prefix)
		}
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown storage driver %q", st.Driver)
	}
	a.Logger.Info("Repository ready", "driver", st.Driver)
	return nil
}

// Patches returns the built-in storage patches followed by the documents of
// the configured patch library, if any.
func (a *App) Patches(ctx context.Context) ([]*domain.WorkflowPatch, error) {
	patches, err := install.DefaultPatches()
	if err != nil {
		return nil, err
	}
	if a.Config.Patches.Library == "" {
		return patches, nil
	}
	loader, err := loamAdapter.Open(a.Config.Patches.Library)
	if err != nil {
		return nil, err
	}
	extra, err := install.LibraryPatches(ctx, loader)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Patch library loaded", "path", a.Config.Patches.Library, "patches", len(extra))
	return append(patches, extra...), nil
}

// Install runs the install sequence against the repository.
func (a *App) Install(ctx context.Context, opts ...install.Option) ([]install.StepResult, error) {
	patches, err := a.Patches(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]install.Option{
		install.WithLogger(a.Logger),
		install.WithObserver(a.Metrics.ObserveStep),
	}, opts...)
	runner := install.NewRunner(a.Locker, opts...)
	return runner.Run(ctx, &install.Env{
		Repo:    a.Repo,
		Storage: a.Storage,
		Patcher: a.Patcher,
		Patches: patches,
		Seed:    a.Config.Seed,
		Logger:  a.Logger,
	})
}

// Exporter returns a snapshot exporter writing to S3 when a bucket is
// configured and to the export directory otherwise.
func (a *App) Exporter(ctx context.Context) (*export.Exporter, error) {
	var sink ports.BlobSink
	if a.Config.Export.S3.Bucket != "" {
		s3Sink, err := blob.NewS3Sink(ctx, a.Config.Export.S3)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	} else {
		sink = blob.NewDirSink(a.Config.Export.Dir)
	}
	mws, err := a.exportMiddleware()
	if err != nil {
		return nil, err
	}
	return export.New(middleware.Chain(sink, mws...), export.WithLogger(a.Logger)), nil
}

// exportMiddleware masks contact fields before sealing the snapshot.
func (a *App) exportMiddleware() ([]middleware.Middleware, error) {
	cfg := a.Config.Export
	var mws []middleware.Middleware
	if cfg.Redact {
		patterns := cfg.RedactKeys
		if len(patterns) == 0 {
			patterns = middleware.DefaultPIIPatterns
		}
		pii, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.Encryption.Enabled() {
		keys, err := middleware.ParseKeys(cfg.Encryption.Key, cfg.Encryption.FallbackKeys...)
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// DecodeSnapshot parses a snapshot written by Export, opening the encryption
// envelope with the configured keys when present.
func (a *App) DecodeSnapshot(raw []byte) (*export.Snapshot, error) {
	if middleware.IsEncrypted(raw) {
		enc := a.Config.Export.Encryption
		if !enc.Enabled() {
			return nil, errors.New("snapshot is encrypted but no export.encryption.key is configured")
		}
		keys, err := middleware.ParseKeys(enc.Key, enc.FallbackKeys...)
		if err != nil {
			return nil, err
		}
		plain, err := middleware.Decrypt(raw, keys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
		}
		raw = plain
	}
	return export.Decode(raw)
}

// Close releases the repository connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
