package domain

import (
	"reflect"
	"slices"
)

// DefinitionDiff lists the changes between two versions of a workflow definition.
// It backs dry-run output of patch commands.
type DefinitionDiff struct {
	WorkflowID string `json:"workflow_id"`

	AddedStates   []string `json:"added_states,omitempty"`
	ChangedStates []string `json:"changed_states,omitempty"`
	RemovedStates []string `json:"removed_states,omitempty"`

	AddedTransitions   []string `json:"added_transitions,omitempty"`
	ChangedTransitions []string `json:"changed_transitions,omitempty"`
	RemovedTransitions []string `json:"removed_transitions,omitempty"`

	AddedPermissions []string `json:"added_permissions,omitempty"`
}

// Empty reports whether the diff carries no change.
func (d *DefinitionDiff) Empty() bool {
	return d == nil || (len(d.AddedStates) == 0 && len(d.ChangedStates) == 0 && len(d.RemovedStates) == 0 &&
		len(d.AddedTransitions) == 0 && len(d.ChangedTransitions) == 0 && len(d.RemovedTransitions) == 0 &&
		len(d.AddedPermissions) == 0)
}

// Diff calculates the difference between oldDef and newDef.
// If oldDef is nil, everything in newDef is reported as added.
// It returns nil when nothing changed.
func Diff(oldDef, newDef *Definition) *DefinitionDiff {
	if newDef == nil {
		return nil
	}
	if oldDef == nil {
		oldDef = NewDefinition(newDef.ID, "")
	}

	diff := &DefinitionDiff{WorkflowID: newDef.ID}

	for _, id := range newDef.StateIDs() {
		old, ok := oldDef.States[id]
		switch {
		case !ok:
			diff.AddedStates = append(diff.AddedStates, id)
		case !statesEqual(old, newDef.States[id]):
			diff.ChangedStates = append(diff.ChangedStates, id)
		}
	}
	for _, id := range oldDef.StateIDs() {
		if _, ok := newDef.States[id]; !ok {
			diff.RemovedStates = append(diff.RemovedStates, id)
		}
	}

	for _, id := range newDef.TransitionIDs() {
		old, ok := oldDef.Transitions[id]
		switch {
		case !ok:
			diff.AddedTransitions = append(diff.AddedTransitions, id)
		case *old != *newDef.Transitions[id]:
			diff.ChangedTransitions = append(diff.ChangedTransitions, id)
		}
	}
	for _, id := range oldDef.TransitionIDs() {
		if _, ok := newDef.Transitions[id]; !ok {
			diff.RemovedTransitions = append(diff.RemovedTransitions, id)
		}
	}

	for _, perm := range NormalizeSet(newDef.Permissions) {
		if !slices.Contains(oldDef.Permissions, perm) {
			diff.AddedPermissions = append(diff.AddedPermissions, perm)
		}
	}

	if diff.Empty() {
		return nil
	}
	return diff
}

// Equal reports whether two definitions have the same id, title, initial
// state, managed permissions, states and transitions.
func Equal(a, b *Definition) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Title != b.Title || a.Initial != b.Initial {
		return false
	}
	if !slices.Equal(NormalizeSet(a.Permissions), NormalizeSet(b.Permissions)) {
		return false
	}
	return Diff(a, b) == nil && Diff(b, a) == nil
}

func statesEqual(a, b *State) bool {
	if a.Title != b.Title || a.Description != b.Description {
		return false
	}
	if !slices.Equal(NormalizeSet(a.Transitions), NormalizeSet(b.Transitions)) {
		return false
	}
	return reflect.DeepEqual(normalizeRoles(a.PermissionRoles), normalizeRoles(b.PermissionRoles))
}

func normalizeRoles(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for perm, roles := range in {
		out[perm] = NormalizeSet(roles)
	}
	return out
}
