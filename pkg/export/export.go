// Package export writes JSON snapshots of a repository to a blob sink and
// restores them.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// FormatVersion is bumped when the snapshot layout changes.
const FormatVersion = 1

// Snapshot is the full content of a repository.
type Snapshot struct {
	Version    int                  `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Items      []*domain.Item       `json:"items"`
	Samples    []*domain.Sample     `json:"samples"`
	Workflows  []*domain.Definition `json:"workflows"`
	Settings   map[string][]string  `json:"settings,omitempty"`
}

// SettingKeys are the settings included in snapshots.
var SettingKeys = []string{domain.SettingHiddenActions}

// Take reads every record of repo.
func Take(ctx context.Context, repo ports.Repository, now time.Time) (*Snapshot, error) {
	items, err := repo.ListItems(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	samples, err := repo.ListSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	ids, err := repo.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	snap := &Snapshot{
		Version:    FormatVersion,
		ExportedAt: now,
		Items:      items,
		Samples:    samples,
		Workflows:  make([]*domain.Definition, 0, len(ids)),
		Settings:   map[string][]string{},
	}
	for _, id := range ids {
		def, err := repo.GetWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.Workflows = append(snap.Workflows, def)
	}
	for _, key := range SettingKeys {
		values, err := repo.GetSetting(ctx, key)
		if err != nil {
			return nil, err
		}
		if values != nil {
			snap.Settings[key] = values
		}
	}
	return snap, nil
}

// Restore writes every record of snap into repo. Existing records with the
// same ids are overwritten; others are left alone.
func Restore(ctx context.Context, repo ports.Repository, snap *Snapshot) error {
	if snap.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for _, def := range snap.Workflows {
		if err := repo.SaveWorkflow(ctx, def); err != nil {
			return err
		}
	}
	for _, item := range snap.Items {
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
	}
	for _, s := range snap.Samples {
		if err := repo.SaveSample(ctx, s); err != nil {
			return err
		}
	}
	for key, values := range snap.Settings {
		if err := repo.SetSetting(ctx, key, values); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a snapshot document.
func Decode(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return &snap, nil
}

// Exporter uploads snapshots to a sink.
type Exporter struct {
	sink   ports.BlobSink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Exporter.
type Option func(*Exporter)

// WithLogger configures a logger for the Exporter.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithClock overrides the time source used for ExportedAt and the key.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New creates an Exporter writing to sink.
func New(sink ports.BlobSink, opts ...Option) *Exporter {
	e := &Exporter{
		sink:   sink,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the blob key for a snapshot taken at t.
func Key(t time.Time) string {
	return "snapshots/strata-" + t.UTC().Format("20060102T150405Z") + ".json"
}

// Export takes a snapshot of repo and uploads it, returning the blob key.
func (e *Exporter) Export(ctx context.Context, repo ports.Repository) (string, error) {
	now := e.now()
	snap, err := Take(ctx, repo, now)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := Key(now)
	if err := e.sink.Put(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	e.logger.Info("Snapshot exported", "key", key, "items", len(snap.Items), "samples", len(snap.Samples), "workflows", len(snap.Workflows))
	return key, nil
}
