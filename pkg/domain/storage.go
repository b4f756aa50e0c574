package domain

import (
	"fmt"
	"slices"
	"time"
)

// Kind tags the type of a node in the storage tree.
type Kind string

const (
	// KindFacility is a top-level physical storage site. It holds containers and has no grid.
	KindFacility Kind = "facility"
	// KindContainer is a holder with a fixed grid (fridge, rack) that nests containers or sample boxes.
	KindContainer Kind = "container"
	// KindSamplesContainer is a leaf box holding samples directly.
	KindSamplesContainer Kind = "samplesContainer"
	// KindSample is only used in child references: samples are stored in their own bucket.
	KindSample Kind = "sample"
)

// Valid reports whether k names a storage item kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFacility, KindContainer, KindSamplesContainer:
		return true
	}
	return false
}

// CanContain reports whether a child of kind child may be placed below a parent of kind parent.
func CanContain(parent, child Kind) bool {
	switch parent {
	case KindFacility:
		return child == KindContainer
	case KindContainer:
		return child == KindContainer || child == KindSamplesContainer
	case KindSamplesContainer:
		return child == KindSample
	}
	return false
}

// ChildRef points at an item (or sample) occupying a slot of its parent.
type ChildRef struct {
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// HasCapacity is implemented by holders with a fixed number of slots.
type HasCapacity interface {
	Capacity() int
	OccupiedCount() int
}

// HasChildren is implemented by holders exposing their occupied slots in order.
type HasChildren interface {
	ChildRefs() []ChildRef
}

// Holder is the capability set of a storage container.
type Holder interface {
	HasCapacity
	HasChildren
}

// Address is the postal address of a facility.
type Address struct {
	Street  string `json:"street,omitempty" yaml:"street,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	Zip     string `json:"zip,omitempty" yaml:"zip,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
}

// FacilityInfo holds the contact details shown in the facility listing.
type FacilityInfo struct {
	Phone   string  `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email   string  `json:"email,omitempty" yaml:"email,omitempty"`
	Address Address `json:"address" yaml:"address"`
}

// Item is a node of the storage tree. The Kind tag decides which fields apply:
// facilities carry contact details and an unbounded list of containers, while
// containers and sample boxes carry an immutable Rows x Columns grid.
type Item struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Title     string        `json:"title"`
	ParentID  string        `json:"parent_id,omitempty"`
	Rows      int           `json:"rows,omitempty"`
	Columns   int           `json:"columns,omitempty"`
	Children  []ChildRef    `json:"children"`
	Facility  *FacilityInfo `json:"facility,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

var _ Holder = (*Item)(nil)

// NewFacility creates a facility item.
func NewFacility(id, title string, info FacilityInfo) *Item {
	return &Item{
		ID:        id,
		Kind:      KindFacility,
		Title:     title,
		Children:  []ChildRef{},
		Facility:  &info,
		CreatedAt: time.Now().UTC(),
	}
}

// NewContainer creates a container or sample box with a fixed grid.
// Rows and columns must be positive.
func NewContainer(id string, kind Kind, title string, rows, columns int) (*Item, error) {
	if kind != KindContainer && kind != KindSamplesContainer {
		return nil, fmt.Errorf("%w: kind %q has no grid", ErrInvalidHierarchy, kind)
	}
	if rows <= 0 || columns <= 0 {
		return nil, fmt.Errorf("%w: rows=%d columns=%d", ErrInvalidDimensions, rows, columns)
	}
	return &Item{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Rows:      rows,
		Columns:   columns,
		Children:  []ChildRef{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Bounded reports whether the item enforces a grid capacity.
func (i *Item) Bounded() bool {
	return i.Kind == KindContainer || i.Kind == KindSamplesContainer
}

// Capacity returns Rows * Columns. Facilities report 0.
func (i *Item) Capacity() int {
	if !i.Bounded() {
		return 0
	}
	return i.Rows * i.Columns
}

// OccupiedCount returns the number of occupied slots.
func (i *Item) OccupiedCount() int {
	return len(i.Children)
}

// FreeSlots returns the number of unoccupied slots, or -1 for unbounded items.
func (i *Item) FreeSlots() int {
	if !i.Bounded() {
		return -1
	}
	return i.Capacity() - i.OccupiedCount()
}

// ChildRefs returns a copy of the occupied slots in insertion order.
func (i *Item) ChildRefs() []ChildRef {
	return slices.Clone(i.Children)
}

// HasChild reports whether id occupies a slot of the item.
func (i *Item) HasChild(id string) bool {
	return i.indexOf(id) >= 0
}

// AddChild appends ref to the occupied slots. It is the single mutation gate of
// the occupancy invariant: a full container rejects the child with ErrCapacityExceeded.
func (i *Item) AddChild(ref ChildRef) error {
	if i.HasChild(ref.ID) {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, ref.ID, i.ID)
	}
	if i.Bounded() && i.OccupiedCount() >= i.Capacity() {
		return fmt.Errorf("%w: %s holds %d/%d", ErrCapacityExceeded, i.ID, i.OccupiedCount(), i.Capacity())
	}
	i.Children = append(i.Children, ref)
	return nil
}

// RemoveChild frees the slot occupied by ref. Remaining children keep their
// relative order; slots are not compacted or renumbered beyond the removal itself.
func (i *Item) RemoveChild(ref ChildRef) error {
	idx := i.indexOf(ref.ID)
	if idx < 0 {
		return fmt.Errorf("%w: child %s in %s", ErrNotFound, ref.ID, i.ID)
	}
	i.Children = slices.Delete(i.Children, idx, idx+1)
	return nil
}

// Position returns the 1-based row and column of the slot occupied by id,
// numbered row-major in insertion order.
func (i *Item) Position(id string) (row, column int, ok bool) {
	idx := i.indexOf(id)
	if idx < 0 || !i.Bounded() {
		return 0, 0, false
	}
	return idx/i.Columns + 1, idx%i.Columns + 1, true
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	out.Children = slices.Clone(i.Children)
	if out.Children == nil {
		out.Children = []ChildRef{}
	}
	if i.Facility != nil {
		info := *i.Facility
		out.Facility = &info
	}
	return &out
}

// Ref returns the child reference pointing at the item.
func (i *Item) Ref() ChildRef {
	return ChildRef{ID: i.ID, Kind: i.Kind}
}

func (i *Item) indexOf(id string) int {
	return slices.IndexFunc(i.Children, func(c ChildRef) bool { return c.ID == id })
}
