package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Guard is the access predicate of a transition. Permissions and Roles are
// ';'-separated lists; an empty guard always passes.
type Guard struct {
	Permissions string `json:"permissions"`
	Roles       string `json:"roles"`
	Expression  string `json:"expression"`
}

// IsZero reports whether the guard has no conditions.
func (g Guard) IsZero() bool {
	return g.Permissions == "" && g.Roles == "" && g.Expression == ""
}

// PermissionList returns the guard permissions as a list.
func (g Guard) PermissionList() []string { return splitList(g.Permissions) }

// RoleList returns the guard roles as a list.
func (g Guard) RoleList() []string { return splitList(g.Roles) }

// State is a node of a workflow definition.
type State struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Transitions     []string            `json:"transitions"`
	PermissionRoles map[string][]string `json:"permission_roles"`
}

// SetPermission replaces the role set granted for perm in this state.
// An empty role list is kept as an explicit empty grant.
func (s *State) SetPermission(perm string, roles []string) {
	if s.PermissionRoles == nil {
		s.PermissionRoles = make(map[string][]string)
	}
	s.PermissionRoles[perm] = NormalizeSet(roles)
}

// Roles returns the roles granted perm in this state.
func (s *State) Roles(perm string) []string {
	return slices.Clone(s.PermissionRoles[perm])
}

// HasTransition reports whether the transition leaves this state.
func (s *State) HasTransition(id string) bool {
	return slices.Contains(s.Transitions, id)
}

func (s *State) clone() *State {
	out := *s
	out.Transitions = slices.Clone(s.Transitions)
	if out.Transitions == nil {
		out.Transitions = []string{}
	}
	out.PermissionRoles = make(map[string][]string, len(s.PermissionRoles))
	for perm, roles := range s.PermissionRoles {
		out.PermissionRoles[perm] = NormalizeSet(roles)
	}
	return &out
}

// Transition moves a subject from any state listing it to NewStateID.
type Transition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	NewStateID  string `json:"new_state_id"`
	ActionLabel string `json:"action_label"`
	AfterScript string `json:"after_script,omitempty"`
	Guard       Guard  `json:"guard"`
}

// Definition is a workflow state machine.
type Definition struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Initial     string                 `json:"initial"`
	Permissions []string               `json:"permissions"`
	States      map[string]*State      `json:"states"`
	Transitions map[string]*Transition `json:"transitions"`
}

// NewDefinition creates an empty definition.
func NewDefinition(id, title string) *Definition {
	return &Definition{
		ID:          id,
		Title:       title,
		Permissions: []string{},
		States:      make(map[string]*State),
		Transitions: make(map[string]*Transition),
	}
}

// State looks up a state by id.
func (d *Definition) State(id string) (*State, bool) {
	s, ok := d.States[id]
	return s, ok
}

// AddState returns the state with the given id, creating an empty one if missing.
func (d *Definition) AddState(id string) *State {
	if s, ok := d.States[id]; ok {
		return s
	}
	if d.States == nil {
		d.States = make(map[string]*State)
	}
	s := &State{ID: id, Transitions: []string{}, PermissionRoles: make(map[string][]string)}
	d.States[id] = s
	return s
}

// Transition looks up a transition by id.
func (d *Definition) Transition(id string) (*Transition, bool) {
	t, ok := d.Transitions[id]
	return t, ok
}

// AddTransition returns the transition with the given id, creating an empty one if missing.
func (d *Definition) AddTransition(id string) *Transition {
	if t, ok := d.Transitions[id]; ok {
		return t
	}
	if d.Transitions == nil {
		d.Transitions = make(map[string]*Transition)
	}
	t := &Transition{ID: id}
	d.Transitions[id] = t
	return t
}

// StateIDs returns the state ids in sorted order.
func (d *Definition) StateIDs() []string {
	return slices.Sorted(maps.Keys(d.States))
}

// TransitionIDs returns the transition ids in sorted order.
func (d *Definition) TransitionIDs() []string {
	return slices.Sorted(maps.Keys(d.Transitions))
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := &Definition{
		ID:          d.ID,
		Title:       d.Title,
		Initial:     d.Initial,
		Permissions: NormalizeSet(d.Permissions),
		States:      make(map[string]*State, len(d.States)),
		Transitions: make(map[string]*Transition, len(d.Transitions)),
	}
	for id, s := range d.States {
		out.States[id] = s.clone()
	}
	for id, t := range d.Transitions {
		cpy := *t
		out.Transitions[id] = &cpy
	}
	return out
}

// Validate checks the referential invariants: every transition targets an
// existing state and every state only lists existing transitions.
func (d *Definition) Validate() error {
	var errs []error
	if d.Initial != "" {
		if _, ok := d.States[d.Initial]; !ok {
			errs = append(errs, fmt.Errorf("initial state %q does not exist", d.Initial))
		}
	}
	for _, id := range d.TransitionIDs() {
		t := d.Transitions[id]
		if _, ok := d.States[t.NewStateID]; !ok {
			errs = append(errs, fmt.Errorf("transition %q targets unknown state %q", id, t.NewStateID))
		}
	}
	for _, id := range d.StateIDs() {
		for _, tid := range d.States[id].Transitions {
			if _, ok := d.Transitions[tid]; !ok {
				errs = append(errs, fmt.Errorf("state %q lists unknown transition %q", id, tid))
			}
		}
	}
	return errors.Join(errs...)
}

// NormalizeSet returns a sorted copy of values without duplicates or blanks.
// The result is never nil so that an empty set survives serialisation.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func splitList(raw string) []string {
	return NormalizeSet(strings.Split(raw, ";"))
}
