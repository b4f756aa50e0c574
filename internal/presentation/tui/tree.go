package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/storage"
)

// TreeMarkdown renders a storage subtree as a nested markdown list.
// Samples are listed with their slot position.
func TreeMarkdown(root *storage.TreeNode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", root.Title())
	for _, child := range root.Children {
		writeNode(&sb, child, 0)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n *storage.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.Sample != nil {
		fmt.Fprintf(sb, "%s- `%d:%d` %s _(%s)_\n", indent, n.Row, n.Column, n.Sample.Title, n.Sample.ReviewState)
		return
	}
	item := n.Item
	switch item.Kind {
	case domain.KindFacility:
		fmt.Fprintf(sb, "%s- **%s**", indent, item.Title)
	default:
		fmt.Fprintf(sb, "%s- %s %dx%d", indent, item.Title, item.Rows, item.Columns)
	}
	if n.Capacity > 0 {
		fmt.Fprintf(sb, " (%d/%d, %.0f%%)", n.Samples, n.Capacity, n.Usage())
	}
	sb.WriteString("\n")
	for _, child := range n.Children {
		writeNode(sb, child, depth+1)
	}
}

// FacilitiesMarkdown renders the facility listing as a markdown table.
func FacilitiesMarkdown(rows []storage.FacilityRow) string {
	var sb strings.Builder
	sb.WriteString("| Title | Usage | Samples | Capacity | Containers | Phone | Email |\n")
	sb.WriteString("|---|---:|---:|---:|---:|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "| %s | %.1f%% | %d | %d | %d | %s | %s |\n",
			cell(r.Title), r.Usage, r.Samples, r.Capacity, r.Containers, cell(r.Phone), cell(r.Email))
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Print writes markdown to w, rendered with glamour when w is a terminal.
func Print(w io.Writer, markdown string) error {
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		out, err := NewRenderer()(markdown)
		if err == nil {
			markdown = out
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}
