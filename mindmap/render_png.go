package mindmap

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/conclave-ai/conclave/meeting"
)

var (
	pngBackground = color.White
	pngNodeFill   = color.White
	pngNodeStroke = color.RGBA{0x33, 0x33, 0x33, 0xff}
	pngEdgeColor  = color.RGBA{0x88, 0x88, 0x88, 0xff}
)

// RenderPNG rasterizes the same radial layout RenderSVG uses: every edge
// drawn once, every node drawn once as a filled, outlined circle, the
// root the largest (and therefore outermost-looking) circle at center.
// Label text is not rendered: no font-rendering library exists anywhere
// in the corpus, so node content is conveyed via the SVG/markdown/json
// export formats instead.
func RenderPNG(mm *meeting.MindMap) ([]byte, error) {
	size := int(layoutCanvasSize)
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: pngBackground}, image.Point{}, draw.Src)

	points := layout(mm)

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
			drawLine(img, p.x, p.y, c.x, c.y, pngEdgeColor)
		}
	}

	for _, n := range mm.Nodes {
		p, ok := points[n.ID]
		if !ok {
			continue
		}
		radius := 18.0
		if n.Level == 0 {
			radius = 28.0
		}
		drawCircle(img, p.x, p.y, radius, pngNodeFill, pngNodeStroke)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	dx := x1 - x0
	dy := y1 - y0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		img.Set(int(x0), int(y0), c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.Set(int(x0+dx*t), int(y0+dy*t), c)
	}
}

func drawCircle(img *image.RGBA, cx, cy, radius float64, fill, stroke color.Color) {
	bounds := img.Bounds()
	minX := int(math.Max(0, cx-radius-1))
	maxX := int(math.Min(float64(bounds.Dx()), cx+radius+1))
	minY := int(math.Max(0, cy-radius-1))
	maxY := int(math.Min(float64(bounds.Dy()), cy+radius+1))

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			switch {
			case d <= radius-1.5:
				img.Set(x, y, fill)
			case d <= radius:
				img.Set(x, y, stroke)
			}
		}
	}
}
