package mindmap

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/conclave-ai/conclave/meeting"
)

// layoutPoint is one node's placement in the radial layout shared by the
// SVG and PNG renderers.
type layoutPoint struct {
	x, y float64
}

const (
	layoutCanvasSize = 900.0
	layoutCenter     = layoutCanvasSize / 2
	layoutRingGap    = 140.0
)

// layout places the root at the canvas center and each subsequent level
// on a ring of radius level*layoutRingGap, nodes within a level spread
// evenly by angle. Deterministic: same tree always produces the same
// coordinates, ordered by node id for stability.
func layout(mm *meeting.MindMap) map[string]layoutPoint {
	points := make(map[string]layoutPoint)
	root, ok := mm.Nodes[mm.RootNode]
	if !ok {
		return points
	}
	points[root.ID] = layoutPoint{x: layoutCenter, y: layoutCenter}

	byLevel := make(map[int][]string)
	for id, n := range mm.Nodes {
		if n.Level == 0 {
			continue
		}
		byLevel[n.Level] = append(byLevel[n.Level], id)
	}

	for level, ids := range byLevel {
		sortIDs(ids)
		n := len(ids)
		radius := float64(level) * layoutRingGap
		for i, id := range ids {
			angle := 2 * math.Pi * float64(i) / float64(n)
			points[id] = layoutPoint{
				x: layoutCenter + radius*math.Cos(angle),
				y: layoutCenter + radius*math.Sin(angle),
			}
		}
	}
	return points
}

func sortIDs(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// RenderSVG draws every node and every parent-child edge from mm exactly
// once, with the root as the outermost visual element per §6.4's
// correctness bar.
func RenderSVG(mm *meeting.MindMap) string {
	points := layout(mm)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		int(layoutCanvasSize), int(layoutCanvasSize), int(layoutCanvasSize), int(layoutCanvasSize))
	b.WriteString("\n")

	for _, n := range mm.Nodes {
		p, ok := points[n.ID]
		if !ok {
			continue
		}
		for _, childID := range n.ChildrenIDs {
			c, ok := points[childID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#888" stroke-width="1"/>`+"\n", p.x, p.y, c.x, c.y)
		}
	}

	for _, n := range mm.Nodes {
		p, ok := points[n.ID]
		if !ok {
			continue
		}
		radius := 24.0
		if n.Level == 0 {
			radius = 36.0
		}
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#fff" stroke="#333" stroke-width="1.5"/>`+"\n", p.x, p.y, radius)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-size="11" text-anchor="middle" dominant-baseline="middle">%s</text>`+"\n",
			p.x, p.y, html.EscapeString(truncateLabel(n.Content, 18)))
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func truncateLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
