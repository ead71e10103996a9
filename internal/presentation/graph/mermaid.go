package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
)

// Overlay contains task state to highlight on the graph.
type Overlay struct {
	CurrentNode domain.NodeID
	// Suspended marks the current node as waiting on a human.
	Suspended bool
}

// GenerateMermaid produces a Mermaid flowchart of the review state machine.
// It applies semantic styling:
// - Start and done: ((Circle))
// - Human approval: [/Parallelogram/]
// - Model-backed steps: [[Subroutine]]
// - Default: [Rectangle]
func GenerateMermaid(edges []runtime.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	seen := make(map[domain.NodeID]bool)
	for _, e := range edges {
		for _, n := range []domain.NodeID{e.From, e.To} {
			if seen[n] {
				continue
			}
			seen[n] = true
			opener, closer := shape(n)
			fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(string(n)), opener, n, closer)
		}
	}

	for _, e := range edges {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		if e.From == domain.NodeValidate && e.To == domain.NodeAnalyzeClause {
			arrow = fmt.Sprintf("-. \"%s\" .->", e.Label)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(string(e.From)), arrow, sanitizeMermaidID(string(e.To)))
	}

	if overlay != nil && overlay.CurrentNode != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef suspended fill:#fecaca,stroke:#b91c1c,stroke-width:4px,color:#000;\n")
		class := "current"
		if overlay.Suspended {
			class = "suspended"
		}
		fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(string(overlay.CurrentNode)), class)
	}

	return sb.String()
}

func shape(n domain.NodeID) (string, string) {
	switch n {
	case domain.NodeStart, domain.NodeDone:
		return "((", "))"
	case domain.NodeHumanApproval:
		return "[/", "/]"
	case domain.NodeAnalyzeClause, domain.NodeGenerateDiffs, domain.NodeValidate, domain.NodeSummarize:
		return "[[", "]]"
	}
	return "[", "]"
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
