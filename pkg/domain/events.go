package domain

import (
	"context"
	"time"
)

// EventType defines the category of a storage event.
type EventType string

const (
	EventItemCreated   EventType = "item_created"
	EventItemMoved     EventType = "item_moved"
	EventItemDeleted   EventType = "item_deleted"
	EventSampleStored  EventType = "sample_stored"
	EventSampleRemoved EventType = "sample_recovered"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ItemEvent reports a structural change of the storage tree.
type ItemEvent struct {
	EventBase
	ItemID    string `json:"item_id"`
	Kind      Kind   `json:"kind"`
	ParentID  string `json:"parent_id,omitempty"`
	OldParent string `json:"old_parent,omitempty"`
}

// SampleEvent reports a sample entering or leaving a container slot.
type SampleEvent struct {
	EventBase
	SampleID    string `json:"sample_id"`
	ContainerID string `json:"container_id"`
	FromState   string `json:"from_state"`
	ToState     string `json:"to_state"`
}

// LifecycleHooks defines callbacks for storage observability.
type LifecycleHooks struct {
	OnItemChange   func(context.Context, *ItemEvent)
	OnSampleChange func(context.Context, *SampleEvent)
}
