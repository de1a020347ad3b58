package editor

import "github.com/starford/mindmaps/internal/models"

// Event is an input to Reduce. Coordinates are canvas-relative.
type Event interface {
	event()
}

type (
	// CanvasClick is a click on empty canvas area.
	CanvasClick struct{ X, Y float64 }
	// AddNodeAt adds a node centered at (X, Y) unconditionally (toolbar button).
	AddNodeAt struct{ X, Y float64 }
	// NodeClick is a click on a node.
	NodeClick struct{ ID string }
	// NodeDoubleClick is a double-click on a node; it starts editing.
	NodeDoubleClick struct{ ID string }
	// StartEdit starts editing a node from its controls.
	StartEdit struct{ ID string }
	// EditInput replaces the edit scratch buffer.
	EditInput struct{ Text string }
	// ConfirmEdit commits the scratch buffer (Enter or the check button).
	ConfirmEdit struct{}
	// CancelEdit discards the scratch buffer (Escape, blur, or the cancel button).
	CancelEdit struct{}
	// PointerDown starts a drag when NodeID names a node. An empty NodeID
	// means the pointer went down on empty canvas.
	PointerDown struct {
		NodeID string
		X, Y   float64
	}
	// PointerMove moves the dragged node, if any.
	PointerMove struct{ X, Y float64 }
	// PointerUp ends a drag.
	PointerUp struct{}
	// ToggleConnect turns the connect tool on or off.
	ToggleConnect struct{}
	// CancelConnect leaves connecting mode without creating an edge.
	CancelConnect struct{}
	// ToggleMove turns the move tool on or off.
	ToggleMove struct{}
	// SelectColor picks the palette color for new nodes.
	SelectColor struct{ Color string }
	// DeleteNode removes a node and its connections.
	DeleteNode struct{ ID string }
	// DeleteConnection removes one connection.
	DeleteConnection struct{ ID string }
	// SetNodeColor recolors a node.
	SetNodeColor struct {
		ID    string
		Color string
	}
	// SetNodeSize resizes a node.
	SetNodeSize struct {
		ID   string
		Size models.Size
	}
	// SetNodeText relabels a node directly, bypassing edit mode.
	SetNodeText struct {
		ID   string
		Text string
	}
	// Clear resets the canvas to the seed graph.
	Clear struct{}
	// Load replaces the graph with a persisted snapshot.
	Load struct{ Graph Graph }
	// Resize reports new canvas bounds.
	Resize struct{ Bounds Bounds }
)

func (CanvasClick) event()      {}
func (AddNodeAt) event()        {}
func (NodeClick) event()        {}
func (NodeDoubleClick) event()  {}
func (StartEdit) event()        {}
func (EditInput) event()        {}
func (ConfirmEdit) event()      {}
func (CancelEdit) event()       {}
func (PointerDown) event()      {}
func (PointerMove) event()      {}
func (PointerUp) event()        {}
func (ToggleConnect) event()    {}
func (CancelConnect) event()    {}
func (ToggleMove) event()       {}
func (SelectColor) event()      {}
func (DeleteNode) event()       {}
func (DeleteConnection) event() {}
func (SetNodeColor) event()     {}
func (SetNodeSize) event()      {}
func (SetNodeText) event()      {}
func (Clear) event()            {}
func (Load) event()             {}
func (Resize) event()           {}
