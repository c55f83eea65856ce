package mindmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conclave-ai/conclave/meeting"
)

// ExportMarkdown renders mm per §6.4: level-0 as H1, each descendant as a
// nested bullet by level, with message-reference ids as trailing
// italicized markers.
func ExportMarkdown(mm *meeting.MindMap) string {
	root, ok := mm.Nodes[mm.RootNode]
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", root.Content)
	for _, childID := range sortedChildren(root) {
		writeMarkdownNode(&b, mm, childID)
	}
	return b.String()
}

func sortedChildren(n *meeting.MindMapNode) []string {
	out := make([]string, len(n.ChildrenIDs))
	copy(out, n.ChildrenIDs)
	sort.Strings(out)
	return out
}

func writeMarkdownNode(b *strings.Builder, mm *meeting.MindMap, nodeID string) {
	n, ok := mm.Nodes[nodeID]
	if !ok {
		return
	}
	indent := strings.Repeat("  ", n.Level-1)
	fmt.Fprintf(b, "%s- %s", indent, n.Content)
	if len(n.MessageReferences) > 0 {
		fmt.Fprintf(b, " *(%s)*", strings.Join(n.MessageReferences, ", "))
	}
	b.WriteString("\n")
	for _, childID := range sortedChildren(n) {
		writeMarkdownNode(b, mm, childID)
	}
}
