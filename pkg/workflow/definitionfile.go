package workflow

import (
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	"gopkg.in/yaml.v3"
)

type definitionDocument struct {
	ID          string                             `mapstructure:"id" yaml:"id"`
	Title       string                             `mapstructure:"title" yaml:"title"`
	Initial     string                             `mapstructure:"initial" yaml:"initial"`
	Permissions []string                           `mapstructure:"permissions" yaml:"permissions"`
	States      map[string]definitionStateDoc      `mapstructure:"states" yaml:"states"`
	Transitions map[string]definitionTransitionDoc `mapstructure:"transitions" yaml:"transitions"`
}

type definitionStateDoc struct {
	Title       string              `mapstructure:"title" yaml:"title,omitempty"`
	Description string              `mapstructure:"description" yaml:"description,omitempty"`
	Transitions []string            `mapstructure:"transitions" yaml:"transitions"`
	Permissions map[string][]string `mapstructure:"permissions" yaml:"permissions,omitempty"`
}

type definitionTransitionDoc struct {
	Title       string             `mapstructure:"title" yaml:"title,omitempty"`
	NewState    string             `mapstructure:"new_state" yaml:"new_state"`
	Action      string             `mapstructure:"action" yaml:"action,omitempty"`
	AfterScript string             `mapstructure:"after_script" yaml:"after_script,omitempty"`
	Guard       definitionGuardDoc `mapstructure:"guard" yaml:"guard,omitempty"`
}

type definitionGuardDoc struct {
	Permissions string `mapstructure:"guard_permissions" yaml:"guard_permissions,omitempty"`
	Roles       string `mapstructure:"guard_roles" yaml:"guard_roles,omitempty"`
	Expression  string `mapstructure:"guard_expr" yaml:"guard_expr,omitempty"`
}

// ParseDefinition decodes a workflow definition document and validates its
// referential invariants.
func ParseDefinition(raw []byte) (*domain.Definition, error) {
	var doc definitionDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("invalid workflow definition: id is empty")
	}

	def := domain.NewDefinition(doc.ID, doc.Title)
	def.Initial = doc.Initial
	def.Permissions = domain.NormalizeSet(doc.Permissions)
	for sid, s := range doc.States {
		st := def.AddState(sid)
		st.Title = s.Title
		st.Description = s.Description
		st.Transitions = domain.NormalizeSet(s.Transitions)
		for perm, roles := range s.Permissions {
			st.SetPermission(perm, roles)
		}
	}
	for tid, t := range doc.Transitions {
		tr := def.AddTransition(tid)
		tr.Title = t.Title
		tr.NewStateID = t.NewState
		tr.ActionLabel = t.Action
		tr.AfterScript = t.AfterScript
		tr.Guard = domain.Guard{
			Permissions: t.Guard.Permissions,
			Roles:       t.Guard.Roles,
			Expression:  t.Guard.Expression,
		}
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition %s: %w", def.ID, err)
	}
	return def, nil
}

// MarshalDefinition renders a definition in the document form read by ParseDefinition.
func MarshalDefinition(def *domain.Definition) ([]byte, error) {
	doc := definitionDocument{
		ID:          def.ID,
		Title:       def.Title,
		Initial:     def.Initial,
		Permissions: nonNil(def.Permissions),
		States:      make(map[string]definitionStateDoc, len(def.States)),
		Transitions: make(map[string]definitionTransitionDoc, len(def.Transitions)),
	}
	for id, s := range def.States {
		doc.States[id] = definitionStateDoc{
			Title:       s.Title,
			Description: s.Description,
			Transitions: nonNil(s.Transitions),
			Permissions: s.PermissionRoles,
		}
	}
	for id, t := range def.Transitions {
		doc.Transitions[id] = definitionTransitionDoc{
			Title:       t.Title,
			NewState:    t.NewStateID,
			Action:      t.ActionLabel,
			AfterScript: t.AfterScript,
			Guard: definitionGuardDoc{
				Permissions: t.Guard.Permissions,
				Roles:       t.Guard.Roles,
				Expression:  t.Guard.Expression,
			},
		}
	}
	return yaml.Marshal(doc)
}
