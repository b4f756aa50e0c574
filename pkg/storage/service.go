// Package storage manages the storage hierarchy: facilities, containers and
// sample boxes, and the samples stored in them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/google/uuid"
)

// Metrics receives operation outcomes. internal/metrics provides the Prometheus implementation.
type Metrics interface {
	ObserveOperation(op string, err error)
	SetOccupancy(facilityID string, samples, capacity int)
}

// Service serialises mutations of the storage tree so that a child and its
// parent are always updated together.
type Service struct {
	repo    ports.Repository
	engine  *workflow.Engine
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	metrics Metrics
	newID   func() string
	now     func() time.Time

	mu sync.Mutex
}

// Option configures the Service.
type Option func(*Service)

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithEngine replaces the workflow engine used for store and recover.
func WithEngine(e *workflow.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithMetrics registers a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides the identifier generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a storage service over repo.
func NewService(repo ports.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: workflow.NewEngine(),
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() ports.Repository {
	return s.repo
}

func (s *Service) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, err)
	}
}

func (s *Service) itemEvent(ctx context.Context, typ domain.EventType, item *domain.Item, oldParent string) {
	if s.hooks.OnItemChange == nil {
		return
	}
	s.hooks.OnItemChange(ctx, &domain.ItemEvent{
		EventBase: domain.EventBase{Timestamp: s.now(), Type: typ},
		ItemID:    item.ID,
		Kind:      item.Kind,
		ParentID:  item.ParentID,
		OldParent: oldParent,
	})
}

func (s *Service) sampleEvent(ctx context.Context, typ domain.EventType, sample *domain.Sample, containerID, from string) {
	if s.hooks.OnSampleChange == nil {
		return
	}
	s.hooks.OnSampleChange(ctx, &domain.SampleEvent{
		EventBase:   domain.EventBase{Timestamp: s.now(), Type: typ},
		SampleID:    sample.ID,
		ContainerID: containerID,
		FromState:   from,
		ToState:     sample.ReviewState,
	})
}

// CreateFacility creates a top-level facility.
func (s *Service) CreateFacility(ctx context.Context, title string, info domain.FacilityInfo) (item *domain.Item, err error) {
	defer func() { s.observe("create_facility", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	item = domain.NewFacility(s.newID(), title, info)
	item.CreatedAt = s.now()
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save facility: %w", err)
	}
	s.logger.Info("Facility created", "id", item.ID, "title", title)
	s.itemEvent(ctx, domain.EventItemCreated, item, "")
	return item, nil
}

// CreateContainer creates a container or sample box below parentID, occupying
// one slot of the parent.
func (s *Service) CreateContainer(ctx context.Context, parentID string, kind domain.Kind, title string, rows, columns int) (item *domain.Item, err error) {
	defer func() { s.observe("create_container", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.repo.GetItem(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !domain.CanContain(parent.Kind, kind) {
		return nil, fmt.Errorf("%w: %s cannot hold %s", domain.ErrInvalidHierarchy, parent.Kind, kind)
	}

	item, err = domain.NewContainer(s.newID(), kind, title, rows, columns)
	if err != nil {
		return nil, err
	}
	item.ParentID = parent.ID
	item.CreatedAt = s.now()

	if err := parent.AddChild(item.Ref()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save container: %w", err)
	}
	if err := s.repo.SaveItem(ctx, parent); err != nil {
		_ = s.repo.DeleteItem(ctx, item.ID)
		return nil, fmt.Errorf("failed to save parent %s: %w", parent.ID, err)
	}

	s.logger.Debug("Container created", "id", item.ID, "kind", kind, "parent", parent.ID, "rows", rows, "columns", columns)
	s.itemEvent(ctx, domain.EventItemCreated, item, "")
	return item, nil
}

// Get returns an item by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// Facilities returns every facility sorted by id.
func (s *Service) Facilities(ctx context.Context) ([]*domain.Item, error) {
	return s.repo.ListItems(ctx, domain.KindFacility)
}

// Slot is an occupied position of a container.
type Slot struct {
	Row    int             `json:"row,omitempty"`
	Column int             `json:"column,omitempty"`
	Ref    domain.ChildRef `json:"ref"`
	Title  string          `json:"title"`
}

// Children lists the occupied slots of an item in insertion order.
func (s *Service) Children(ctx context.Context, id string) ([]Slot, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, 0, item.OccupiedCount())
	for _, ref := range item.ChildRefs() {
		slot := Slot{Ref: ref}
		slot.Row, slot.Column, _ = item.Position(ref.ID)
		if ref.Kind == domain.KindSample {
			if sample, err := s.repo.GetSample(ctx, ref.ID); err == nil {
				slot.Title = sample.Title
			}
		} else if child, err := s.repo.GetItem(ctx, ref.ID); err == nil {
			slot.Title = child.Title
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Move relocates a container below newParentID. The child keeps its own
// contents; on a persistence failure the previous state is restored.
func (s *Service) Move(ctx context.Context, childID, newParentID string) (err error) {
	defer func() { s.observe("move", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	child, err := s.repo.GetItem(ctx, childID)
	if err != nil {
		return err
	}
	if child.Kind == domain.KindFacility {
		return fmt.Errorf("%w: facilities cannot be moved", domain.ErrInvalidHierarchy)
	}
	if child.ParentID == newParentID {
		return nil
	}
	newParent, err := s.repo.GetItem(ctx, newParentID)
	if err != nil {
		return err
	}
	if !domain.CanContain(newParent.Kind, child.Kind) {
		return fmt.Errorf("%w: %s cannot hold %s", domain.ErrInvalidHierarchy, newParent.Kind, child.Kind)
	}
	if err := s.ensureNotDescendant(ctx, child.ID, newParent); err != nil {
		return err
	}
	oldParent, err := s.repo.GetItem(ctx, child.ParentID)
	if err != nil {
		return fmt.Errorf("failed to load current parent of %s: %w", child.ID, err)
	}

	origChild, origOld, origNew := child.Clone(), oldParent.Clone(), newParent.Clone()

	if err := newParent.AddChild(child.Ref()); err != nil {
		return err
	}
	if err := oldParent.RemoveChild(child.Ref()); err != nil {
		return err
	}
	child.ParentID = newParent.ID

	var saved []*domain.Item
	for _, it := range []*domain.Item{newParent, oldParent, child} {
		if err := s.repo.SaveItem(ctx, it); err != nil {
			s.rollback(ctx, saved, origChild, origOld, origNew)
			return fmt.Errorf("failed to move %s: %w", child.ID, err)
		}
		saved = append(saved, it)
	}

	s.logger.Info("Item moved", "id", child.ID, "from", origOld.ID, "to", newParent.ID)
	s.itemEvent(ctx, domain.EventItemMoved, child, origOld.ID)
	return nil
}

func (s *Service) rollback(ctx context.Context, saved []*domain.Item, originals ...*domain.Item) {
	byID := make(map[string]*domain.Item, len(originals))
	for _, o := range originals {
		byID[o.ID] = o
	}
	for _, it := range saved {
		if err := s.repo.SaveItem(ctx, byID[it.ID]); err != nil {
			s.logger.Error("Rollback failed", "id", it.ID, "error", err)
		}
	}
}

// ensureNotDescendant rejects moving id below itself or one of its descendants.
func (s *Service) ensureNotDescendant(ctx context.Context, id string, target *domain.Item) error {
	cur := target
	for depth := 0; cur != nil; depth++ {
		if cur.ID == id {
			return fmt.Errorf("%w: %s cannot be moved below itself", domain.ErrInvalidHierarchy, id)
		}
		if cur.ParentID == "" || depth > 64 {
			return nil
		}
		next, err := s.repo.GetItem(ctx, cur.ParentID)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// Delete removes an empty item and frees its slot in the parent.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.observe("delete", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.OccupiedCount() > 0 {
		return fmt.Errorf("%w: %s holds %d children", domain.ErrNotEmpty, id, item.OccupiedCount())
	}
	if item.ParentID != "" {
		parent, err := s.repo.GetItem(ctx, item.ParentID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := parent.RemoveChild(item.Ref()); err == nil {
				if err := s.repo.SaveItem(ctx, parent); err != nil {
					return fmt.Errorf("failed to save parent %s: %w", parent.ID, err)
				}
			}
		}
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Item deleted", "id", id)
	s.itemEvent(ctx, domain.EventItemDeleted, item, item.ParentID)
	return nil
}
