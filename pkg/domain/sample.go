package domain

import "time"

// Sample is a laboratory sample tracked by the sample workflow.
// ContainerID is set while the sample occupies a slot of a samples container.
type Sample struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	WorkflowID  string    `json:"workflow_id"`
	ReviewState string    `json:"review_state"`
	ContainerID string    `json:"container_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stored reports whether the sample currently occupies a container slot.
func (s *Sample) Stored() bool {
	return s.ContainerID != ""
}

// Ref returns the child reference pointing at the sample.
func (s *Sample) Ref() ChildRef {
	return ChildRef{ID: s.ID, Kind: KindSample}
}

// Clone returns a copy of the sample.
func (s *Sample) Clone() *Sample {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
