package domain

import "errors"

// ErrCapacityExceeded is returned when a child is added to a container whose slots are all occupied.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrNotFound is returned when an item, sample, child reference or workflow element cannot be found.
var ErrNotFound = errors.New("not found")

// ErrInvalidDimensions is returned when a container is created with non-positive rows or columns.
var ErrInvalidDimensions = errors.New("invalid dimensions")

// ErrWorkflowNotFound is returned when a patch targets a workflow that does not exist.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrSourceStateMissing is reported when permissions are copied from a state that does not exist.
// It never aborts a patch.
var ErrSourceStateMissing = errors.New("permission source state missing")

// ErrDuplicateChild is returned when a reference already occupies a slot of the same container.
var ErrDuplicateChild = errors.New("child already present")

// ErrInvalidHierarchy is returned when an item kind cannot be placed below the requested parent kind.
var ErrInvalidHierarchy = errors.New("invalid hierarchy")

// ErrNotEmpty is returned when deleting an item that still holds children.
var ErrNotEmpty = errors.New("item not empty")

// ErrTransitionNotAllowed is returned when a transition does not leave the current state.
var ErrTransitionNotAllowed = errors.New("transition not allowed")

// ErrGuardDenied is returned when a transition guard rejects the actor.
var ErrGuardDenied = errors.New("guard denied")

// ErrInvalidPatch is returned when a workflow patch document fails validation on load.
var ErrInvalidPatch = errors.New("invalid workflow patch")
