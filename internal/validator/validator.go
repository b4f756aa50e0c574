// Package validator checks that a workflow definition forms a usable state
// machine, beyond the referential checks done when it is parsed.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
)

// Result lists the problems found in a definition. Errors make it unusable;
// Orphans are transitions no state offers and only warrant a warning.
type Result struct {
	Errors      []string
	Unreachable []string
	Orphans     []string
}

// Err folds Errors and Unreachable into a single error, or nil.
func (r Result) Err() error {
	problems := slices.Clone(r.Errors)
	for _, id := range r.Unreachable {
		problems = append(problems, fmt.Sprintf("Unreachable state: '%s'", id))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
}

// ValidateWorkflow crawls def from its initial state, reporting broken links
// and states that can never be entered.
func ValidateWorkflow(def *domain.Definition) Result {
	var res Result
	res.Orphans = graph.Orphans(def)

	if def.Initial == "" {
		res.Errors = append(res.Errors, "Initial state is not set")
		return res
	}
	if _, ok := def.State(def.Initial); !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("Missing initial state: '%s'", def.Initial))
		return res
	}

	visited := make(map[string]bool)
	queue := []string{def.Initial}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		state, ok := def.State(currentID)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("Missing state: '%s'", currentID))
			continue
		}

		for _, tid := range state.Transitions {
			t, ok := def.Transition(tid)
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("State '%s' offers missing transition '%s'", currentID, tid))
				continue
			}
			if !visited[t.NewStateID] {
				queue = append(queue, t.NewStateID)
			}
		}
	}

	for _, id := range def.StateIDs() {
		if !visited[id] {
			res.Unreachable = append(res.Unreachable, id)
		}
	}
	return res
}
