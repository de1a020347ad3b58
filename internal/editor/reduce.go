package editor

import "github.com/starford/mindmaps/internal/models"

// IDSource yields ids for new nodes and connections. It must not return
// the same id forever.
type IDSource func() string

// Reduce applies one event to s and returns the resulting state. Events
// that reference unknown nodes, or that do not apply in the current mode,
// return s unchanged. Reduce never panics on a well-typed event and never
// fails.
func Reduce(s State, ev Event, ids IDSource) State {
	switch e := ev.(type) {
	case CanvasClick:
		// A click while a drag is still registered means the pointer-up was
		// lost; the click only ends the drag.
		if s.Drag != nil {
			s.Drag = nil
			return s
		}
		if s.Connecting || s.Moving || s.Editing != "" {
			return s
		}
		return s.addNode(e.X, e.Y, ids)

	case AddNodeAt:
		return s.addNode(e.X, e.Y, ids)

	case NodeClick:
		if _, ok := s.Graph.Node(e.ID); !ok {
			return s
		}
		s.Selected = e.ID
		if !s.Connecting {
			return s
		}
		switch {
		case s.Source == "":
			s.Source = e.ID
		case s.Source != e.ID:
			s.Graph = s.Graph.Connect(freshID(s.Graph, ids), s.Source, e.ID)
			s.Source = ""
		}
		return s

	case NodeDoubleClick:
		return s.startEdit(e.ID)

	case StartEdit:
		return s.startEdit(e.ID)

	case EditInput:
		if s.Editing != "" {
			s.Scratch = e.Text
		}
		return s

	case ConfirmEdit:
		if s.Editing == "" {
			return s
		}
		s.Graph = s.Graph.SetNodeText(s.Editing, s.Scratch)
		s.Editing, s.Scratch = "", ""
		return s

	case CancelEdit:
		s.Editing, s.Scratch = "", ""
		return s

	case PointerDown:
		// Any pointer-down starts from a clean drag state, so a missed
		// pointer-up can never leave a drag stuck.
		s.Drag = nil
		if e.NodeID == "" || s.Editing != "" {
			return s
		}
		n, ok := s.Graph.Node(e.NodeID)
		if !ok {
			return s
		}
		s.Drag = &Drag{NodeID: n.ID, OffsetX: e.X - n.X, OffsetY: e.Y - n.Y}
		s.Selected = n.ID
		return s

	case PointerMove:
		if s.Drag == nil {
			return s
		}
		if _, ok := s.Graph.Node(s.Drag.NodeID); !ok {
			s.Drag = nil
			return s
		}
		s.Graph = s.Graph.MoveNode(s.Drag.NodeID, e.X-s.Drag.OffsetX, e.Y-s.Drag.OffsetY, s.Bounds)
		return s

	case PointerUp:
		s.Drag = nil
		return s

	case ToggleConnect:
		if s.Connecting {
			s.Connecting, s.Source = false, ""
			return s
		}
		s.Connecting, s.Source = true, ""
		s.Editing, s.Scratch = "", ""
		return s

	case CancelConnect:
		s.Connecting, s.Source = false, ""
		return s

	case ToggleMove:
		s.Moving = !s.Moving
		return s

	case SelectColor:
		if models.ValidColor(e.Color) {
			s.Color = e.Color
		}
		return s

	case DeleteNode:
		if _, ok := s.Graph.Node(e.ID); !ok {
			return s
		}
		s.Graph = s.Graph.DeleteNode(e.ID)
		return s.forget(e.ID)

	case DeleteConnection:
		s.Graph = s.Graph.DeleteConnection(e.ID)
		return s

	case SetNodeColor:
		s.Graph = s.Graph.SetNodeColor(e.ID, e.Color)
		return s

	case SetNodeSize:
		s.Graph = s.Graph.SetNodeSize(e.ID, e.Size, s.Bounds)
		return s

	case SetNodeText:
		s.Graph = s.Graph.SetNodeText(e.ID, e.Text)
		return s

	case Clear:
		s.Graph = SeedGraph()
		return s.reset()

	case Load:
		s.Graph = e.Graph
		return s.reset()

	case Resize:
		if e.Bounds.Width <= 0 || e.Bounds.Height <= 0 {
			return s
		}
		s.Bounds = e.Bounds
		s.Graph = s.Graph.Reclamp(e.Bounds)
		return s
	}
	return s
}

// addNode centers a default-sized node on (x, y) using the palette color.
func (s State) addNode(x, y float64, ids IDSource) State {
	size := models.SizeMedium
	w, h := size.Footprint()
	nx, ny := s.Bounds.Clamp(x-w/2, y-h/2, size)
	s.Graph = s.Graph.AddNode(models.Node{
		ID:    freshID(s.Graph, ids),
		X:     nx,
		Y:     ny,
		Text:  DefaultText,
		Color: s.Color,
		Size:  size,
	})
	return s
}

func (s State) startEdit(id string) State {
	n, ok := s.Graph.Node(id)
	if !ok || s.Editing != "" {
		return s
	}
	s.Editing = id
	s.Scratch = n.Text
	s.Drag = nil
	return s
}

// freshID draws ids until one is unused by any node or connection of g.
func freshID(g Graph, ids IDSource) string {
	for {
		id := ids()
		if _, taken := g.Node(id); taken {
			continue
		}
		if _, taken := g.Connection(id); taken {
			continue
		}
		return id
	}
}
