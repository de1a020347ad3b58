package editor

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/starford/mindmaps/internal/models"
)

// curveLift is how far an edge's control point rises above the midpoint
// of its anchors.
const curveLift = 50

// Point is a canvas coordinate.
type Point struct{ X, Y float64 }

// Anchor is the point where connections attach to n: its stored top-left
// offset by half the size-dependent footprint.
func Anchor(n models.Node) Point {
	w, h := n.Size.Footprint()
	return Point{X: n.X + w/2, Y: n.Y + h/2}
}

// Curve is the quadratic Bezier drawn for a connection.
type Curve struct {
	From, Control, To Point
}

// EdgeCurve derives the curve between two nodes. The control point is the
// anchors' midpoint lifted by curveLift, so edges bow upward.
func EdgeCurve(from, to models.Node) Curve {
	a, b := Anchor(from), Anchor(to)
	mid := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	return Curve{From: a, Control: Point{X: mid.X, Y: mid.Y - curveLift}, To: b}
}

// Handle is the point of the clickable delete target on the curve.
func (c Curve) Handle() Point {
	mid := Point{X: (c.From.X + c.To.X) / 2, Y: (c.From.Y + c.To.Y) / 2}
	return Point{X: mid.X, Y: mid.Y - curveLift/2}
}

// Path renders the curve as SVG path data.
func (c Curve) Path() string {
	return fmt.Sprintf("M %s %s Q %s %s %s %s",
		num(c.From.X), num(c.From.Y), num(c.Control.X), num(c.Control.Y), num(c.To.X), num(c.To.Y))
}

// Edge pairs a connection with its derived curve.
type Edge struct {
	Connection models.Connection
	Curve      Curve
}

// Edges derives a curve for every connection of g.
func Edges(g Graph) []Edge {
	out := make([]Edge, 0, len(g.conns))
	for _, c := range g.conns {
		from, ok1 := g.Node(c.From)
		to, ok2 := g.Node(c.To)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, Edge{Connection: c, Curve: EdgeCurve(from, to)})
	}
	return out
}

// PaintOrder returns nodes in the order they are painted: insertion order,
// with the dragged node, or else the selected node, moved to the top.
func PaintOrder(s State) []models.Node {
	nodes := s.Graph.Nodes()
	top := s.Selected
	if s.Drag != nil {
		top = s.Drag.NodeID
	}
	if top == "" {
		return nodes
	}
	for i, n := range nodes {
		if n.ID == top {
			nodes = append(nodes[:i], nodes[i+1:]...)
			return append(nodes, n)
		}
	}
	return nodes
}

const (
	edgeColor = "#ec4899"
	textColor = "#ffffff"
)

// RenderSVG writes g as a standalone SVG document sized to b.
func RenderSVG(w io.Writer, g Graph, b Bounds) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(b.Width), num(b.Height), num(b.Width), num(b.Height))
	for _, e := range Edges(g) {
		fmt.Fprintf(&sb, `  <path d="%s" stroke="%s" stroke-width="3" fill="none" stroke-dasharray="8,4"/>`+"\n",
			e.Curve.Path(), edgeColor)
	}
	for _, n := range g.nodes {
		nw, nh := n.Size.Footprint()
		a := Anchor(n)
		fmt.Fprintf(&sb, `  <g id="node-%s">`+"\n", html.EscapeString(n.ID))
		fmt.Fprintf(&sb, `    <rect x="%s" y="%s" width="%s" height="%s" rx="8" fill="%s" stroke="#ffffff" stroke-width="2"/>`+"\n",
			num(n.X), num(n.Y), num(nw), num(nh), html.EscapeString(n.Color))
		fmt.Fprintf(&sb, `    <text x="%s" y="%s" fill="%s" font-size="%d" text-anchor="middle" dominant-baseline="middle">%s</text>`+"\n",
			num(a.X), num(a.Y), textColor, fontSize(n.Size), html.EscapeString(n.Text))
		sb.WriteString("  </g>\n")
	}
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func fontSize(s models.Size) int {
	switch s {
	case models.SizeSmall:
		return 12
	case models.SizeLarge:
		return 16
	default:
		return 14
	}
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// FitBounds returns the smallest bounds, at least DefaultBounds, that
// contain every node of g with pad to spare.
func FitBounds(g Graph, pad float64) Bounds {
	b := DefaultBounds
	for _, n := range g.nodes {
		w, h := n.Size.Footprint()
		b.Width = max(b.Width, n.X+w+pad)
		b.Height = max(b.Height, n.Y+h+pad)
	}
	return b
}
