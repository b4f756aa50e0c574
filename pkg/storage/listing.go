package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
)

// FacilityRow is one line of the facility listing.
type FacilityRow struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Usage      float64 `json:"usage"`
	Samples    int     `json:"samples"`
	Capacity   int     `json:"capacity"`
	Containers int     `json:"containers"`
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
}

// TreeNode is an item, or a sample in a slot, with its subtree.
type TreeNode struct {
	Item     *domain.Item   `json:"item,omitempty"`
	Sample   *domain.Sample `json:"sample,omitempty"`
	Row      int            `json:"row,omitempty"`
	Column   int            `json:"column,omitempty"`
	Samples  int            `json:"samples"`
	Capacity int            `json:"capacity"`
	Children []*TreeNode    `json:"children,omitempty"`
}

// Usage returns stored samples as a percentage of sample slots in the subtree.
func (n *TreeNode) Usage() float64 {
	if n.Capacity == 0 {
		return 0
	}
	return float64(n.Samples) * 100 / float64(n.Capacity)
}

// Title returns the item or sample title.
func (n *TreeNode) Title() string {
	if n.Sample != nil {
		return n.Sample.Title
	}
	return n.Item.Title
}

type snapshot struct {
	items   map[string]*domain.Item
	samples map[string]*domain.Sample
}

func (s *Service) snapshot(ctx context.Context) (*snapshot, error) {
	items, err := s.repo.ListItems(ctx, "")
	if err != nil {
		return nil, err
	}
	samples, err := s.repo.ListSamples(ctx)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		items:   make(map[string]*domain.Item, len(items)),
		samples: make(map[string]*domain.Sample, len(samples)),
	}
	for _, it := range items {
		snap.items[it.ID] = it
	}
	for _, sm := range samples {
		snap.samples[sm.ID] = sm
	}
	return snap, nil
}

// build assembles the subtree of item. Sample capacity counts only sample boxes.
func (snap *snapshot) build(item *domain.Item) *TreeNode {
	node := &TreeNode{Item: item}
	if item.Kind == domain.KindSamplesContainer {
		node.Capacity = item.Capacity()
	}
	for _, ref := range item.ChildRefs() {
		row, col, _ := item.Position(ref.ID)
		if ref.Kind == domain.KindSample {
			sample, ok := snap.samples[ref.ID]
			if !ok {
				sample = &domain.Sample{ID: ref.ID, Title: ref.ID}
			}
			node.Samples++
			node.Children = append(node.Children, &TreeNode{Sample: sample, Row: row, Column: col})
			continue
		}
		child, ok := snap.items[ref.ID]
		if !ok {
			continue
		}
		sub := snap.build(child)
		sub.Row, sub.Column = row, col
		node.Samples += sub.Samples
		node.Capacity += sub.Capacity
		node.Children = append(node.Children, sub)
	}
	return node
}

// Tree returns the subtree rooted at rootID. An empty rootID returns a
// synthetic root whose children are all facilities.
func (s *Service) Tree(ctx context.Context, rootID string) (*TreeNode, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if rootID != "" {
		root, ok := snap.items[rootID]
		if !ok {
			return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, rootID)
		}
		return snap.build(root), nil
	}

	root := &TreeNode{Item: &domain.Item{ID: "", Title: "Storage", Children: []domain.ChildRef{}}}
	for _, f := range sortedFacilities(snap) {
		sub := snap.build(f)
		root.Samples += sub.Samples
		root.Capacity += sub.Capacity
		root.Children = append(root.Children, sub)
	}
	return root, nil
}

// ListFacilities returns the facility listing sorted by title.
func (s *Service) ListFacilities(ctx context.Context) ([]FacilityRow, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	facilities := sortedFacilities(snap)
	rows := make([]FacilityRow, 0, len(facilities))
	for _, f := range facilities {
		node := snap.build(f)
		row := FacilityRow{
			ID:         f.ID,
			Title:      f.Title,
			Usage:      node.Usage(),
			Samples:    node.Samples,
			Capacity:   node.Capacity,
			Containers: f.OccupiedCount(),
		}
		if f.Facility != nil {
			row.Phone = f.Facility.Phone
			row.Email = f.Facility.Email
		}
		if s.metrics != nil {
			s.metrics.SetOccupancy(f.ID, node.Samples, node.Capacity)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sortedFacilities(snap *snapshot) []*domain.Item {
	var out []*domain.Item
	for _, it := range snap.items {
		if it.Kind == domain.KindFacility {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Item) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out
}
