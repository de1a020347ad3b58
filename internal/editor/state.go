package editor

import "github.com/starford/mindmaps/internal/models"

// Status is the mode label shown in the canvas header.
type Status string

const (
	StatusAdd        Status = "add"
	StatusConnecting Status = "connecting"
	StatusMoving     Status = "moving"
	StatusEditing    Status = "editing"
)

// Drag is an in-progress pointer drag of one node.
type Drag struct {
	NodeID string
	// Offset from the node's top-left corner to the pointer at pointer-down.
	OffsetX, OffsetY float64
}

// State is the complete editor state. Reduce never mutates a State; it
// returns a new one, so earlier states stay valid for inspection.
type State struct {
	Graph  Graph
	Bounds Bounds

	// Connecting is the connect tool toggle. Source is the pending
	// connection source while connecting and empty otherwise.
	Connecting bool
	Source     string

	// Moving is the move tool toggle. It only suppresses node creation on
	// canvas clicks; dragging works regardless.
	Moving bool

	// Editing is the id of the node whose label is being edited, with the
	// uncommitted text in Scratch.
	Editing string
	Scratch string

	Selected string
	Drag     *Drag

	// Color is the palette color used for new nodes.
	Color string
}

// NewState returns the initial editor state: the seed graph in add mode.
func NewState() State {
	return State{
		Graph:  SeedGraph(),
		Bounds: DefaultBounds,
		Color:  models.DefaultColor,
	}
}

// Status derives the header label. Connecting wins over moving, which wins
// over editing.
func (s State) Status() Status {
	switch {
	case s.Connecting:
		return StatusConnecting
	case s.Moving:
		return StatusMoving
	case s.Editing != "":
		return StatusEditing
	default:
		return StatusAdd
	}
}

// Dragging reports whether a drag sequence is active.
func (s State) Dragging() bool { return s.Drag != nil }

// SelectedNode returns the selected node, if any.
func (s State) SelectedNode() (models.Node, bool) {
	if s.Selected == "" {
		return models.Node{}, false
	}
	return s.Graph.Node(s.Selected)
}

// reset clears every piece of transient interaction state.
func (s State) reset() State {
	s.Connecting = false
	s.Source = ""
	s.Moving = false
	s.Editing = ""
	s.Scratch = ""
	s.Selected = ""
	s.Drag = nil
	return s
}

// forget drops references to node id from transient state.
func (s State) forget(id string) State {
	if s.Selected == id {
		s.Selected = ""
	}
	if s.Editing == id {
		s.Editing = ""
		s.Scratch = ""
	}
	if s.Source == id {
		s.Source = ""
	}
	if s.Drag != nil && s.Drag.NodeID == id {
		s.Drag = nil
	}
	return s
}
