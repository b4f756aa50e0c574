package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// ItemStore persists the nodes of the storage tree.
type ItemStore interface {
	// SaveItem creates or replaces an item.
	SaveItem(ctx context.Context, item *domain.Item) error

	// GetItem retrieves an item by ID.
	// Returns domain.ErrNotFound if the item does not exist.
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// DeleteItem removes an item. Deleting a missing item is not an error.
	DeleteItem(ctx context.Context, id string) error

	// ListItems returns the items of the given kind sorted by ID.
	// An empty kind lists every item.
	ListItems(ctx context.Context, kind domain.Kind) ([]*domain.Item, error)
}

// SampleStore persists sample records.
type SampleStore interface {
	SaveSample(ctx context.Context, sample *domain.Sample) error
	// GetSample returns domain.ErrNotFound if the sample does not exist.
	GetSample(ctx context.Context, id string) (*domain.Sample, error)
	ListSamples(ctx context.Context) ([]*domain.Sample, error)
}

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, def *domain.Definition) error
	// GetWorkflow returns domain.ErrWorkflowNotFound if the workflow does not exist.
	GetWorkflow(ctx context.Context, id string) (*domain.Definition, error)
	// ListWorkflows returns the stored workflow ids, sorted.
	ListWorkflows(ctx context.Context) ([]string, error)
}

// SettingsStore keeps small list-valued registry entries.
type SettingsStore interface {
	// GetSetting returns nil and no error when the key is unset.
	GetSetting(ctx context.Context, key string) ([]string, error)
	SetSetting(ctx context.Context, key string, values []string) error
}

// Repository is the polymorphic store used by the storage service and the
// install sequence. Items are keyed by ID and tagged by domain.Kind.
type Repository interface {
	ItemStore
	SampleStore
	WorkflowStore
	SettingsStore
}
