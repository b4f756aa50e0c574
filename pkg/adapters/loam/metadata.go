package loam

// PatchMetadata is the frontmatter of a patch document in a Loam repository.
// A document either carries a full `workflows` map or targets a single
// workflow named by `workflow` with top-level states and transitions.
// The markdown body is free-form documentation.
type PatchMetadata struct {
	ID          string         `json:"id" mapstructure:"id"`
	Workflow    string         `json:"workflow" mapstructure:"workflow"`
	Workflows   map[string]any `json:"workflows" mapstructure:"workflows"`
	Permissions []string       `json:"permissions" mapstructure:"permissions"`
	States      map[string]any `json:"states" mapstructure:"states"`
	Transitions map[string]any `json:"transitions" mapstructure:"transitions"`
}
