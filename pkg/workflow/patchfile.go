package workflow

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type patchDocument struct {
	Workflows map[string]workflowDocument `mapstructure:"workflows"`
}

type workflowDocument struct {
	Permissions []string                      `mapstructure:"permissions"`
	States      map[string]stateDocument      `mapstructure:"states"`
	Transitions map[string]transitionDocument `mapstructure:"transitions"`
}

type stateDocument struct {
	Title               *string             `mapstructure:"title"`
	Description         *string             `mapstructure:"description"`
	Transitions         []string            `mapstructure:"transitions"`
	PreserveTransitions bool                `mapstructure:"preserve_transitions"`
	PermissionsCopyFrom string              `mapstructure:"permissions_copy_from"`
	Permissions         map[string][]string `mapstructure:"permissions"`
}

type transitionDocument struct {
	Title       string         `mapstructure:"title"`
	NewState    string         `mapstructure:"new_state"`
	Action      string         `mapstructure:"action"`
	AfterScript string         `mapstructure:"after_script"`
	Guard       *guardDocument `mapstructure:"guard"`
}

// guardDocument uses pointers so that a partially specified guard can be told
// apart from one with empty values.
type guardDocument struct {
	Permissions *string `mapstructure:"guard_permissions"`
	Roles       *string `mapstructure:"guard_roles"`
	Expression  *string `mapstructure:"guard_expr"`
}

// decodeStrict decodes a YAML document into out through mapstructure,
// rejecting keys that out does not declare.
func decodeStrict(raw []byte, out any) error {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	if generic == nil {
		generic = map[string]any{}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(generic)
}

// ParsePatches decodes a patch document. Documents either carry a
// `workflows:` root or are bare (top-level states/transitions); bare documents
// are attached to defaultWorkflow. Every returned patch has been validated.
// Patches are returned sorted by workflow id.
func ParsePatches(raw []byte, defaultWorkflow string) ([]*domain.WorkflowPatch, error) {
	var probe map[string]any
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPatch, err)
	}

	var doc patchDocument
	if _, ok := probe["workflows"]; ok {
		if err := decodeStrict(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPatch, err)
		}
	} else {
		if defaultWorkflow == "" {
			return nil, fmt.Errorf("%w: document has no workflows root and no workflow id was given", domain.ErrInvalidPatch)
		}
		var wf workflowDocument
		if err := decodeStrict(raw, &wf); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPatch, err)
		}
		doc.Workflows = map[string]workflowDocument{defaultWorkflow: wf}
	}

	patches := make([]*domain.WorkflowPatch, 0, len(doc.Workflows))
	for _, id := range slices.Sorted(maps.Keys(doc.Workflows)) {
		p, err := doc.Workflows[id].toPatch(id)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func (w workflowDocument) toPatch(id string) (*domain.WorkflowPatch, error) {
	p := &domain.WorkflowPatch{
		WorkflowID:  id,
		Permissions: w.Permissions,
		States:      make(map[string]domain.StatePatch, len(w.States)),
		Transitions: make(map[string]domain.TransitionPatch, len(w.Transitions)),
	}
	for sid, s := range w.States {
		p.States[sid] = domain.StatePatch{
			Title:               s.Title,
			Description:         s.Description,
			Transitions:         s.Transitions,
			PreserveTransitions: s.PreserveTransitions,
			PermissionsCopyFrom: s.PermissionsCopyFrom,
			Permissions:         s.Permissions,
		}
	}
	for tid, t := range w.Transitions {
		tp := domain.TransitionPatch{
			Title:       t.Title,
			NewState:    t.NewState,
			Action:      t.Action,
			AfterScript: t.AfterScript,
		}
		if t.Guard != nil {
			g := t.Guard
			if g.Permissions == nil || g.Roles == nil || g.Expression == nil {
				return nil, fmt.Errorf("%w: transition %q guard must set guard_permissions, guard_roles and guard_expr together", domain.ErrInvalidPatch, tid)
			}
			tp.Guard = &domain.Guard{Permissions: *g.Permissions, Roles: *g.Roles, Expression: *g.Expression}
		}
		p.Transitions[tid] = tp
	}
	return p, nil
}

// MarshalPatch renders a patch back to its YAML document form.
func MarshalPatch(patches ...*domain.WorkflowPatch) ([]byte, error) {
	doc := map[string]any{}
	for _, p := range patches {
		states := map[string]any{}
		for sid, s := range p.States {
			entry := map[string]any{"transitions": nonNil(s.Transitions)}
			if s.Title != nil {
				entry["title"] = *s.Title
			}
			if s.Description != nil {
				entry["description"] = *s.Description
			}
			if s.PreserveTransitions {
				entry["preserve_transitions"] = true
			}
			if s.PermissionsCopyFrom != "" {
				entry["permissions_copy_from"] = s.PermissionsCopyFrom
			}
			if len(s.Permissions) > 0 {
				perms := map[string][]string{}
				for perm, roles := range s.Permissions {
					perms[perm] = nonNil(roles)
				}
				entry["permissions"] = perms
			}
			states[sid] = entry
		}
		transitions := map[string]any{}
		for tid, t := range p.Transitions {
			entry := map[string]any{
				"title":        t.Title,
				"new_state":    t.NewState,
				"action":       t.Action,
				"after_script": t.AfterScript,
			}
			if t.Guard != nil {
				entry["guard"] = map[string]string{
					"guard_permissions": t.Guard.Permissions,
					"guard_roles":       t.Guard.Roles,
					"guard_expr":        t.Guard.Expression,
				}
			}
			transitions[tid] = entry
		}
		doc[p.WorkflowID] = map[string]any{
			"permissions": nonNil(p.Permissions),
			"states":      states,
			"transitions": transitions,
		}
	}
	return yaml.Marshal(map[string]any{"workflows": doc})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
