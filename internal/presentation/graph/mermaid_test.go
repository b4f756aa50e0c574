package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func testDefinition() *domain.Definition {
	def := domain.NewDefinition("wf", "Workflow")
	def.Initial = "due"
	due := def.AddState("due")
	due.Title = "Sample due"
	due.Transitions = []string{"receive"}
	recv := def.AddState("sample-received")
	recv.Transitions = []string{"store"}
	def.AddState("stored.final")

	receive := def.AddTransition("receive")
	receive.NewStateID = "sample-received"
	receive.Guard = domain.Guard{Roles: "Manager;LabClerk;Manager"}
	store := def.AddTransition("store")
	store.NewStateID = "stored.final"
	def.AddTransition("unused")
	return def
}

func TestGenerateMermaid(t *testing.T) {
	def := testDefinition()

	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Shapes",
			contains: []string{
				`due(("Sample due"))`,
				`sample_received["sample-received"]`,
				`stored_final(["stored.final"])`,
			},
		},
		{
			name: "Edges",
			contains: []string{
				`due -. "receive <br/> roles: LabClerk, Manager" .-> sample_received`,
				`sample_received -- "store" --> stored_final`,
			},
		},
		{
			name:    "Overlay",
			overlay: &graph.GraphOverlay{Added: []string{"stored.final"}, CurrentState: "due"},
			contains: []string{
				"class stored_final added;",
				"class due current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(def, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}

	assert.Equal(t, graph.GenerateMermaid(def, nil), graph.GenerateMermaid(def.Clone(), nil), "output is deterministic")
}

func TestOrphans(t *testing.T) {
	assert.Equal(t, []string{"unused"}, graph.Orphans(testDefinition()))
}
