package storage

import (
	"context"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/workflow"
)

func (s *Service) sampleWorkflow(ctx context.Context, sample *domain.Sample) (*domain.Definition, error) {
	id := sample.WorkflowID
	if id == "" {
		id = domain.SampleWorkflowID
	}
	return s.repo.GetWorkflow(ctx, id)
}

// RegisterSample creates a sample in the initial state of the sample workflow.
func (s *Service) RegisterSample(ctx context.Context, title string) (sample *domain.Sample, err error) {
	defer func() { s.observe("register_sample", err) }()

	def, err := s.repo.GetWorkflow(ctx, domain.SampleWorkflowID)
	if err != nil {
		return nil, err
	}
	sample = &domain.Sample{
		ID:          s.newID(),
		Title:       title,
		WorkflowID:  def.ID,
		ReviewState: def.Initial,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.SaveSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("failed to save sample: %w", err)
	}
	s.logger.Info("Sample registered", "id", sample.ID, "state", sample.ReviewState)
	return sample, nil
}

// GetSample returns a sample by id.
func (s *Service) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	return s.repo.GetSample(ctx, id)
}

// FireSample fires a workflow transition that does not touch storage.
// Use StoreSample and RecoverSample for the storage transitions.
func (s *Service) FireSample(ctx context.Context, sampleID, transitionID string, actor workflow.Actor) (sample *domain.Sample, err error) {
	defer func() { s.observe("fire_sample", err) }()

	if transitionID == domain.TransitionStore || transitionID == domain.TransitionRecover {
		return nil, fmt.Errorf("%w: %s must go through the storage operations", domain.ErrTransitionNotAllowed, transitionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sample, err = s.repo.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	def, err := s.sampleWorkflow(ctx, sample)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Fire(ctx, def, sample.ReviewState, transitionID, actor)
	if err != nil {
		return nil, err
	}
	sample.ReviewState = next
	sample.UpdatedAt = s.now()
	if err := s.repo.SaveSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("failed to save sample: %w", err)
	}
	return sample, nil
}

// StoreSample fires the store transition and places the sample in a free slot of boxID.
func (s *Service) StoreSample(ctx context.Context, sampleID, boxID string, actor workflow.Actor) (sample *domain.Sample, err error) {
	defer func() { s.observe("store_sample", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sample, err = s.repo.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	box, err := s.repo.GetItem(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if box.Kind != domain.KindSamplesContainer {
		return nil, fmt.Errorf("%w: samples can only be stored in a %s, %s is a %s",
			domain.ErrInvalidHierarchy, domain.KindSamplesContainer, box.ID, box.Kind)
	}
	def, err := s.sampleWorkflow(ctx, sample)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Fire(ctx, def, sample.ReviewState, domain.TransitionStore, actor)
	if err != nil {
		return nil, err
	}
	if err := box.AddChild(sample.Ref()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveItem(ctx, box); err != nil {
		return nil, fmt.Errorf("failed to save box %s: %w", box.ID, err)
	}

	from := sample.ReviewState
	sample.ReviewState = next
	sample.ContainerID = box.ID
	sample.UpdatedAt = s.now()
	if err := s.repo.SaveSample(ctx, sample); err != nil {
		_ = box.RemoveChild(sample.Ref())
		if rbErr := s.repo.SaveItem(ctx, box); rbErr != nil {
			s.logger.Error("Rollback failed", "id", box.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("failed to save sample: %w", err)
	}

	row, col, _ := box.Position(sample.ID)
	s.logger.Info("Sample stored", "sample", sample.ID, "box", box.ID, "row", row, "column", col)
	s.sampleEvent(ctx, domain.EventSampleStored, sample, box.ID, from)
	return sample, nil
}

// RecoverSample fires the recover transition and frees the slot the sample occupied.
func (s *Service) RecoverSample(ctx context.Context, sampleID string, actor workflow.Actor) (sample *domain.Sample, err error) {
	defer func() { s.observe("recover_sample", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sample, err = s.repo.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if !sample.Stored() {
		return nil, fmt.Errorf("%w: sample %s is not stored", domain.ErrNotFound, sample.ID)
	}
	def, err := s.sampleWorkflow(ctx, sample)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Fire(ctx, def, sample.ReviewState, domain.TransitionRecover, actor)
	if err != nil {
		return nil, err
	}

	box, err := s.repo.GetItem(ctx, sample.ContainerID)
	if err != nil {
		return nil, err
	}
	if err := box.RemoveChild(sample.Ref()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveItem(ctx, box); err != nil {
		return nil, fmt.Errorf("failed to save box %s: %w", box.ID, err)
	}

	from := sample.ReviewState
	sample.ReviewState = next
	sample.ContainerID = ""
	sample.UpdatedAt = s.now()
	if err := s.repo.SaveSample(ctx, sample); err != nil {
		_ = box.AddChild(sample.Ref())
		if rbErr := s.repo.SaveItem(ctx, box); rbErr != nil {
			s.logger.Error("Rollback failed", "id", box.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("failed to save sample: %w", err)
	}

	s.logger.Info("Sample recovered", "sample", sample.ID, "box", box.ID)
	s.sampleEvent(ctx, domain.EventSampleRemoved, sample, box.ID, from)
	return sample, nil
}
