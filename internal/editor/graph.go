// Package editor implements the interactive mind-map editing model: an
// invariant-preserving graph aggregate, a pure reducer that turns pointer
// and keyboard events into state transitions, and the rendering rules
// derived from that state.
package editor

import (
	"math"
	"strings"

	"github.com/starford/mindmaps/internal/models"
)

// Seed node defaults restored by Clear.
const (
	SeedNodeID = "1"
	SeedText   = "Central Idea"
	SeedX      = 400
	SeedY      = 200

	// DefaultText labels freshly added nodes.
	DefaultText = "New Node"
)

// Bounds is the visible canvas area. Node positions are clamped so their
// footprint stays inside [0, Width] x [0, Height].
type Bounds struct {
	Width  float64
	Height float64
}

// DefaultBounds is used until the canvas reports its real size.
var DefaultBounds = Bounds{Width: 1200, Height: 800}

// Clamp keeps a node of size s with its top-left at (x, y) inside b.
func (b Bounds) Clamp(x, y float64, s models.Size) (float64, float64) {
	w, h := s.Footprint()
	return clamp(x, 0, b.Width-w), clamp(y, 0, b.Height-h)
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Graph is the node and connection content of one mind map. It is a value:
// every method returns a new Graph and leaves the receiver untouched, and
// the only way to change it is through methods that keep every connection
// pointing at existing nodes.
type Graph struct {
	nodes []models.Node
	conns []models.Connection
}

// NewGraph builds a graph from a persisted snapshot. Nodes with a repeated
// id keep their first occurrence; connections whose endpoints are missing
// are dropped.
func NewGraph(nodes []models.Node, conns []models.Connection) Graph {
	g := Graph{
		nodes: make([]models.Node, 0, len(nodes)),
		conns: make([]models.Connection, 0, len(conns)),
	}
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n.ID]; dup || n.ID == "" {
			continue
		}
		if !n.Size.Valid() {
			n.Size = models.SizeMedium
		}
		seen[n.ID] = struct{}{}
		g.nodes = append(g.nodes, n)
	}
	for _, c := range conns {
		_, okFrom := seen[c.From]
		_, okTo := seen[c.To]
		if okFrom && okTo {
			g.conns = append(g.conns, c)
		}
	}
	return g
}

// SeedGraph returns the single-node graph a blank canvas starts with.
func SeedGraph() Graph {
	return Graph{
		nodes: []models.Node{{
			ID:    SeedNodeID,
			X:     SeedX,
			Y:     SeedY,
			Text:  SeedText,
			Color: models.DefaultColor,
			Size:  models.SizeLarge,
		}},
		conns: []models.Connection{},
	}
}

// Nodes returns a copy of the nodes in insertion order.
func (g Graph) Nodes() []models.Node {
	return append([]models.Node{}, g.nodes...)
}

// Connections returns a copy of the connections in insertion order.
func (g Graph) Connections() []models.Connection {
	return append([]models.Connection{}, g.conns...)
}

// Len returns the number of nodes.
func (g Graph) Len() int { return len(g.nodes) }

// Node looks up a node by id.
func (g Graph) Node(id string) (models.Node, bool) {
	if i := g.index(id); i >= 0 {
		return g.nodes[i], true
	}
	return models.Node{}, false
}

// Connection looks up a connection by id.
func (g Graph) Connection(id string) (models.Connection, bool) {
	for _, c := range g.conns {
		if c.ID == id {
			return c, true
		}
	}
	return models.Connection{}, false
}

// AddNode appends n. An empty text, invalid color, or invalid size is
// replaced by the default. The caller supplies a fresh id.
func (g Graph) AddNode(n models.Node) Graph {
	if strings.TrimSpace(n.Text) == "" {
		n.Text = DefaultText
	}
	if !models.ValidColor(n.Color) {
		n.Color = models.DefaultColor
	}
	if !n.Size.Valid() {
		n.Size = models.SizeMedium
	}
	out := g.clone()
	out.nodes = append(out.nodes, n)
	return out
}

// MoveNode places node id at (x, y) clamped to b. Unknown ids are ignored.
func (g Graph) MoveNode(id string, x, y float64, b Bounds) Graph {
	return g.update(id, func(n *models.Node) {
		n.X, n.Y = b.Clamp(x, y, n.Size)
	})
}

// Connect appends a connection from -> to with the given id. Self-loops and
// unknown endpoints are ignored. Duplicate pairs are allowed.
func (g Graph) Connect(id, from, to string) Graph {
	if from == to || g.index(from) < 0 || g.index(to) < 0 {
		return g
	}
	out := g.clone()
	out.conns = append(out.conns, models.Connection{ID: id, From: from, To: to})
	return out
}

// DeleteNode removes node id and every connection touching it.
func (g Graph) DeleteNode(id string) Graph {
	i := g.index(id)
	if i < 0 {
		return g
	}
	out := Graph{
		nodes: make([]models.Node, 0, len(g.nodes)-1),
		conns: make([]models.Connection, 0, len(g.conns)),
	}
	out.nodes = append(out.nodes, g.nodes[:i]...)
	out.nodes = append(out.nodes, g.nodes[i+1:]...)
	for _, c := range g.conns {
		if c.From != id && c.To != id {
			out.conns = append(out.conns, c)
		}
	}
	return out
}

// DeleteConnection removes connection id.
func (g Graph) DeleteConnection(id string) Graph {
	out := Graph{nodes: g.nodes, conns: make([]models.Connection, 0, len(g.conns))}
	removed := false
	for _, c := range g.conns {
		if c.ID == id && !removed {
			removed = true
			continue
		}
		out.conns = append(out.conns, c)
	}
	if !removed {
		return g
	}
	out.nodes = append([]models.Node{}, g.nodes...)
	return out
}

// SetNodeText sets the label of node id to the trimmed text. Blank text is
// ignored and the previous label kept.
func (g Graph) SetNodeText(id, text string) Graph {
	text = strings.TrimSpace(text)
	if text == "" {
		return g
	}
	return g.update(id, func(n *models.Node) { n.Text = text })
}

// SetNodeColor recolors node id. Values that are not hex colors are ignored.
func (g Graph) SetNodeColor(id, color string) Graph {
	if !models.ValidColor(color) {
		return g
	}
	return g.update(id, func(n *models.Node) { n.Color = color })
}

// SetNodeSize resizes node id and re-clamps it to b so the larger
// footprint stays on the canvas.
func (g Graph) SetNodeSize(id string, size models.Size, b Bounds) Graph {
	if !size.Valid() {
		return g
	}
	return g.update(id, func(n *models.Node) {
		n.Size = size
		n.X, n.Y = b.Clamp(n.X, n.Y, size)
	})
}

// Clear returns the seed graph.
func (g Graph) Clear() Graph {
	return SeedGraph()
}

// Reclamp moves every node back inside b.
func (g Graph) Reclamp(b Bounds) Graph {
	out := g.clone()
	for i := range out.nodes {
		n := &out.nodes[i]
		n.X, n.Y = b.Clamp(n.X, n.Y, n.Size)
	}
	return out
}

func (g Graph) index(id string) int {
	for i, n := range g.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (g Graph) update(id string, fn func(*models.Node)) Graph {
	i := g.index(id)
	if i < 0 {
		return g
	}
	out := g.clone()
	fn(&out.nodes[i])
	return out
}

func (g Graph) clone() Graph {
	return Graph{
		nodes: append([]models.Node{}, g.nodes...),
		conns: append([]models.Connection{}, g.conns...),
	}
}
