package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.Repository using the local filesystem.
// Each record is a JSON file under a per-bucket directory of BasePath.
type Store struct {
	BasePath string
	mu       sync.RWMutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".strata/data".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".strata", "data")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(bucket, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid %s id %q", bucket, id)
	}
	return filepath.Join(s.BasePath, bucket, id+".json"), nil
}

// write persists v to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) write(bucket, id string, v any) error {
	destPath, err := s.path(bucket, id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure %s directory: %w", bucket, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+id+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// read returns false when the file does not exist.
func (s *Store) read(bucket, id string, v any) (bool, error) {
	p, err := s.path(bucket, id)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s file: %w", bucket, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", bucket, id, err)
	}
	return true, nil
}

func (s *Store) remove(bucket, id string) error {
	p, err := s.path(bucket, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s file: %w", bucket, err)
	}
	return nil
}

// ids lists the record ids of a bucket, sorted.
func (s *Store) ids(bucket string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, bucket))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("items", item.ID, item)
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var item domain.Item
	ok, err := s.read("items", id, &item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove("items", id)
}

func (s *Store) ListItems(ctx context.Context, kind domain.Kind) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, err := s.ids("items")
	if err != nil {
		return nil, err
	}
	items := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		var item domain.Item
		if _, err := s.read("items", id, &item); err != nil {
			return nil, err
		}
		if kind == "" || item.Kind == kind {
			items = append(items, &item)
		}
	}
	return items, nil
}

func (s *Store) SaveSample(ctx context.Context, sample *domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("samples", sample.ID, sample)
}

func (s *Store) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sample domain.Sample
	ok, err := s.read("samples", id, &sample)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: sample %s", domain.ErrNotFound, id)
	}
	return &sample, nil
}

func (s *Store) ListSamples(ctx context.Context) ([]*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, err := s.ids("samples")
	if err != nil {
		return nil, err
	}
	samples := make([]*domain.Sample, 0, len(ids))
	for _, id := range ids {
		var sample domain.Sample
		if _, err := s.read("samples", id, &sample); err != nil {
			return nil, err
		}
		samples = append(samples, &sample)
	}
	return samples, nil
}

func (s *Store) SaveWorkflow(ctx context.Context, def *domain.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("workflows", def.ID, def)
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var def domain.Definition
	ok, err := s.read("workflows", id, &def)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return &def, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids("workflows")
}

func (s *Store) GetSetting(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var values []string
	if _, err := s.read("settings", key, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) SetSetting(ctx context.Context, key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("settings", key, values)
}
