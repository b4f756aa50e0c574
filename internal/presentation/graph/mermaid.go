package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// GraphOverlay highlights states on top of the workflow graph.
type GraphOverlay struct {
	// Added states are drawn with the "added" class (e.g. states introduced by a patch).
	Added        []string
	CurrentState string
}

// GenerateMermaid produces a Mermaid flowchart for a workflow definition.
// Shapes:
// - Initial state: ((Circle))
// - Terminal state (no outgoing transitions): ([Stadium])
// - Default: [Rectangle]
// Guarded transitions are dotted. Output is sorted so it is stable across runs.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range def.StateIDs() {
		state := def.States[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == def.Initial:
			opener, closer = "((", "))"
		case len(state.Transitions) == 0:
			opener, closer = "([", "])"
		}
		label := state.Title
		if label == "" {
			label = id
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)

		for _, tid := range domain.NormalizeSet(state.Transitions) {
			t, ok := def.Transition(tid)
			if !ok || t.NewStateID == "" {
				continue
			}
			safeTo := sanitizeMermaidID(t.NewStateID)
			if t.Guard.IsZero() {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(tid), safeTo)
			} else {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", safeID, escape(guardLabel(tid, t.Guard)), safeTo)
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef added fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, id := range domain.NormalizeSet(overlay.Added) {
			fmt.Fprintf(&sb, "    class %s added;\n", sanitizeMermaidID(id))
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

// Orphans lists transitions not reachable from any state, which Mermaid cannot draw.
func Orphans(def *domain.Definition) []string {
	used := map[string]bool{}
	for _, s := range def.States {
		for _, t := range s.Transitions {
			used[t] = true
		}
	}
	var out []string
	for _, id := range slices.Sorted(maps.Keys(def.Transitions)) {
		if !used[id] {
			out = append(out, id)
		}
	}
	return out
}

func guardLabel(id string, g domain.Guard) string {
	var parts []string
	if roles := g.RoleList(); len(roles) > 0 {
		parts = append(parts, "roles: "+strings.Join(roles, ", "))
	}
	if perms := g.PermissionList(); len(perms) > 0 {
		parts = append(parts, "perms: "+strings.Join(perms, ", "))
	}
	if g.Expression != "" {
		parts = append(parts, g.Expression)
	}
	if len(parts) == 0 {
		return id
	}
	return id + " <br/> " + strings.Join(parts, " <br/> ")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
