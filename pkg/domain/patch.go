package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// WorkflowPatch describes an additive change to a workflow definition.
type WorkflowPatch struct {
	WorkflowID  string
	Permissions []string
	States      map[string]StatePatch
	Transitions map[string]TransitionPatch
}

// StatePatch changes a single state. Nil Title or Description keep the
// current value. Transitions replace the existing set unless
// PreserveTransitions is set, in which case both sets are merged.
type StatePatch struct {
	Title               *string
	Description         *string
	Transitions         []string
	PreserveTransitions bool
	PermissionsCopyFrom string
	Permissions         map[string][]string
}

// TransitionPatch overwrites a transition. A nil Guard resets the guard.
type TransitionPatch struct {
	Title       string
	NewState    string
	Action      string
	AfterScript string
	Guard       *Guard
}

// Validate checks the structural rules of a patch: ids are set and every
// transition has a target. permissions_copy_from is never rejected; see StateOrder.
func (p *WorkflowPatch) Validate() error {
	var errs []error
	if p.WorkflowID == "" {
		errs = append(errs, errors.New("workflow id is empty"))
	}
	for id := range p.States {
		if id == "" {
			errs = append(errs, errors.New("state id is empty"))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(p.Transitions)) {
		if id == "" {
			errs = append(errs, errors.New("transition id is empty"))
			continue
		}
		if p.Transitions[id].NewState == "" {
			errs = append(errs, fmt.Errorf("transition %q has no new_state", id))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, errors.Join(errs...))
	}
	return nil
}

// StateOrder returns the patched state ids ordered so that a state named by
// permissions_copy_from comes before the states copying from it. Ties are
// broken by id. A state copying from itself has no dependency. Longer
// permissions_copy_from cycles are broken at the state reached first in id
// order and returned as cycles; the states still appear once in order.
func (p *WorkflowPatch) StateOrder() (order []string, cycles [][]string) {
	ids := slices.Sorted(maps.Keys(p.States))
	order = make([]string, 0, len(ids))
	mark := make(map[string]int, len(ids)) // 0 new, 1 visiting, 2 done

	var visit func(id string, path []string)
	visit = func(id string, path []string) {
		switch mark[id] {
		case 1:
			start := slices.Index(path, id)
			cycles = append(cycles, append(slices.Clone(path[start:]), id))
			return
		case 2:
			return
		}
		mark[id] = 1
		path = append(path, id)
		if src := p.States[id].PermissionsCopyFrom; src != "" && src != id {
			if _, patched := p.States[src]; patched {
				visit(src, path)
			}
		}
		mark[id] = 2
		order = append(order, id)
	}

	for _, id := range ids {
		visit(id, nil)
	}
	return order, cycles
}
