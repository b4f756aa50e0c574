package workflow

import (
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatches_StorageAsset(t *testing.T) {
	p := storagePatch(t)
	assert.Equal(t, domain.SampleWorkflowID, p.WorkflowID)

	received := p.States[domain.StateSampleReceived]
	assert.True(t, received.PreserveTransitions)
	assert.Nil(t, received.Title)

	stored := p.States[domain.StateStored]
	require.NotNil(t, stored.Title)
	assert.Equal(t, "Stored", *stored.Title)
	assert.Equal(t, domain.StateSampleReceived, stored.PermissionsCopyFrom)
	assert.Len(t, stored.Permissions, 9)

	store := p.Transitions[domain.TransitionStore]
	require.NotNil(t, store.Guard)
	assert.True(t, store.Guard.IsZero())
}

func TestParsePatches_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wf      string
		message string
	}{
		{
			name:    "unknown key",
			doc:     "workflows:\n  wf:\n    states:\n      a: {titel: typo}\n",
			message: "titel",
		},
		{
			name:    "partial guard",
			doc:     "workflows:\n  wf:\n    transitions:\n      t: {new_state: a, guard: {guard_roles: Manager}}\n",
			message: "together",
		},
		{
			name:    "missing new_state",
			doc:     "workflows:\n  wf:\n    transitions:\n      t: {title: T}\n",
			message: "no new_state",
		},
		{
			name:    "bare document without workflow id",
			doc:     "states:\n  a: {}\n",
			message: "no workflows root",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePatches([]byte(tt.doc), tt.wf)
			require.ErrorIs(t, err, domain.ErrInvalidPatch)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParsePatches_AcceptsCopyCycles(t *testing.T) {
	doc := "workflows:\n  wf:\n    states:\n      a: {permissions_copy_from: b}\n      b: {permissions_copy_from: a}\n      c: {permissions_copy_from: c}\n"
	patches, err := ParsePatches([]byte(doc), "")
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "c", patches[0].States["c"].PermissionsCopyFrom)
}

func TestParsePatches_BareDocument(t *testing.T) {
	doc := `
states:
  stored:
    transitions: [recover]
transitions:
  recover: {title: Recover, new_state: sample_received}
`
	patches, err := ParsePatches([]byte(doc), "custom")
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "custom", patches[0].WorkflowID)
	assert.Nil(t, patches[0].Transitions["recover"].Guard)
}

func TestMarshalPatch_ParsesBack(t *testing.T) {
	original := storagePatch(t)
	raw, err := MarshalPatch(original)
	require.NoError(t, err)

	parsed, err := ParsePatches(raw, "")
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	def := baseSampleWorkflow(t)
	a, _ := NewPatcher().Apply(def, original)
	b, _ := NewPatcher().Apply(def, parsed[0])
	assert.True(t, domain.Equal(a, b))
}

func TestDefinitionDocument_RoundTrip(t *testing.T) {
	def := baseSampleWorkflow(t)
	assert.Equal(t, "sample_due", def.Initial)
	assert.Equal(t, "Manager;LabManager;LabClerk", def.Transitions["receive"].Guard.Roles)

	raw, err := MarshalDefinition(def)
	require.NoError(t, err)
	back, err := ParseDefinition(raw)
	require.NoError(t, err)
	assert.True(t, domain.Equal(def, back))
}

func TestParseDefinition_RejectsDanglingTransition(t *testing.T) {
	doc := "id: wf\nstates:\n  a: {transitions: [go]}\ntransitions:\n  go: {new_state: missing}\n"
	_, err := ParseDefinition([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}
