package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.Repository in memory.
// Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     map[string]*domain.Item
	samples   map[string]*domain.Sample
	workflows map[string]*domain.Definition
	settings  map[string][]string
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		items:     make(map[string]*domain.Item),
		samples:   make(map[string]*domain.Sample),
		workflows: make(map[string]*domain.Definition),
		settings:  make(map[string][]string),
	}
}

// SaveItem stores a copy of the item.
func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	return nil
}

// GetItem returns a copy so callers can't mutate the store through the pointer.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	return item.Clone(), nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Store) ListItems(ctx context.Context, kind domain.Kind) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Item, 0, len(s.items))
	for _, id := range slices.Sorted(maps.Keys(s.items)) {
		item := s.items[id]
		if kind == "" || item.Kind == kind {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

func (s *Store) SaveSample(ctx context.Context, sample *domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.ID] = sample.Clone()
	return nil
}

func (s *Store) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[id]
	if !ok {
		return nil, fmt.Errorf("%w: sample %s", domain.ErrNotFound, id)
	}
	return sample.Clone(), nil
}

func (s *Store) ListSamples(ctx context.Context) ([]*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Sample, 0, len(s.samples))
	for _, id := range slices.Sorted(maps.Keys(s.samples)) {
		out = append(out, s.samples[id].Clone())
	}
	return out, nil
}

func (s *Store) SaveWorkflow(ctx context.Context, def *domain.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[def.ID] = def.Clone()
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return def.Clone(), nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.workflows)), nil
}

func (s *Store) GetSetting(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.settings[key]), nil
}

func (s *Store) SetSetting(ctx context.Context, key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = slices.Clone(values)
	return nil
}
