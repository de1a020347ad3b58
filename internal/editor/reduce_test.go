package editor

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/starford/mindmaps/internal/models"
)

func newTestEditor() *Editor {
	return New(WithIDSource(SequentialIDs("n")))
}

func at(t *testing.T, s State, id string, x, y float64) {
	t.Helper()
	n, ok := s.Graph.Node(id)
	if !ok {
		t.Fatalf("node %q missing", id)
	}
	if n.X != x || n.Y != y {
		t.Errorf("node %q at (%v,%v), want (%v,%v)", id, n.X, n.Y, x, y)
	}
}

func TestInitialState(t *testing.T) {
	s := NewState()
	if s.Status() != StatusAdd {
		t.Errorf("status = %q", s.Status())
	}
	if s.Graph.Len() != 1 {
		t.Errorf("len = %d", s.Graph.Len())
	}
	if s.Dragging() {
		t.Error("dragging at start")
	}
	if s.Color != models.DefaultColor {
		t.Errorf("color = %q", s.Color)
	}
}

func TestCanvasClickAddsCenteredNode(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(SelectColor{Color: "#10b981"})
	s := ed.Dispatch(CanvasClick{X: 500, Y: 300})

	if s.Graph.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Graph.Len())
	}
	n, ok := s.Graph.Node("n1")
	if !ok {
		t.Fatal("n1 missing")
	}
	if n.X != 450 || n.Y != 275 {
		t.Errorf("n1 at (%v,%v), want (450,275)", n.X, n.Y)
	}
	if n.Text != DefaultText || n.Color != "#10b981" || n.Size != models.SizeMedium {
		t.Errorf("n1 = %+v", n)
	}
}

func TestCanvasClickClampsToBounds(t *testing.T) {
	ed := newTestEditor()
	s := ed.Dispatch(CanvasClick{X: 1199, Y: 799})
	at(t, s, "n1", 1100, 750)

	s = ed.Dispatch(CanvasClick{X: 0, Y: 0})
	at(t, s, "n2", 0, 0)
}

func TestCanvasClickSuppressedByModes(t *testing.T) {
	tests := []struct {
		name  string
		setup []Event
	}{
		{"connecting", []Event{ToggleConnect{}}},
		{"moving", []Event{ToggleMove{}}},
		{"editing", []Event{StartEdit{ID: SeedNodeID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := newTestEditor()
			for _, ev := range tt.setup {
				ed.Dispatch(ev)
			}
			if s := ed.Dispatch(CanvasClick{X: 100, Y: 100}); s.Graph.Len() != 1 {
				t.Errorf("len = %d, click should be suppressed", s.Graph.Len())
			}
		})
	}
}

func TestAddNodeAtIgnoresModes(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(ToggleMove{})
	if s := ed.Dispatch(AddNodeAt{X: 600, Y: 400}); s.Graph.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Graph.Len())
	}
}

func TestIDsStayUnique(t *testing.T) {
	// A frozen clock at 1ms would hand out the seed's id first.
	ed := New(WithIDSource(TimeIDs(func() time.Time { return time.UnixMilli(1) })))
	for i := 0; i < 20; i++ {
		ed.Dispatch(CanvasClick{X: float64(i * 10), Y: 100})
	}
	ids := map[string]bool{}
	for _, n := range ed.Graph().Nodes() {
		if ids[n.ID] {
			t.Errorf("duplicate id %s", n.ID)
		}
		ids[n.ID] = true
	}
	if len(ids) != 21 {
		t.Errorf("unique ids = %d, want 21", len(ids))
	}
}

func TestTimeIDsMonotonic(t *testing.T) {
	now := time.UnixMilli(1000)
	ids := TimeIDs(func() time.Time { return now })
	for _, want := range []string{"1000", "1001"} {
		if got := ids(); got != want {
			t.Errorf("id = %q, want %q", got, want)
		}
	}
	now = time.UnixMilli(5000)
	if got := ids(); got != "5000" {
		t.Errorf("id = %q, want 5000", got)
	}
}

func TestConnectFlow(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(CanvasClick{X: 100, Y: 100}) // n1
	ed.Dispatch(CanvasClick{X: 700, Y: 500}) // n2

	s := ed.Dispatch(ToggleConnect{})
	if s.Status() != StatusConnecting {
		t.Fatalf("status = %q", s.Status())
	}

	s = ed.Dispatch(NodeClick{ID: "n1"})
	if s.Source != "n1" {
		t.Fatalf("source = %q", s.Source)
	}

	s = ed.Dispatch(NodeClick{ID: "n1"})
	if len(s.Graph.Connections()) != 0 {
		t.Error("self-loop created")
	}
	if s.Source != "n1" {
		t.Errorf("source = %q after clicking it again", s.Source)
	}

	s = ed.Dispatch(NodeClick{ID: "n2"})
	conns := s.Graph.Connections()
	if len(conns) != 1 {
		t.Fatalf("connections = %d, want 1", len(conns))
	}
	if conns[0].From != "n1" || conns[0].To != "n2" {
		t.Errorf("connection = %+v", conns[0])
	}
	if s.Source != "" {
		t.Errorf("source = %q after connecting", s.Source)
	}
	if !s.Connecting {
		t.Error("connect tool should stay on")
	}

	s = ed.Dispatch(ToggleConnect{})
	if s.Status() != StatusAdd || s.Source != "" {
		t.Errorf("after toggle off: status=%q source=%q", s.Status(), s.Source)
	}
}

func TestCancelConnectDropsSource(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(ToggleConnect{})
	ed.Dispatch(NodeClick{ID: SeedNodeID})
	s := ed.Dispatch(CancelConnect{})
	if s.Connecting || s.Source != "" {
		t.Errorf("connecting=%v source=%q", s.Connecting, s.Source)
	}
}

func TestEditFlow(t *testing.T) {
	ed := newTestEditor()
	s := ed.Dispatch(NodeDoubleClick{ID: SeedNodeID})
	if s.Status() != StatusEditing || s.Scratch != SeedText {
		t.Fatalf("status=%q scratch=%q", s.Status(), s.Scratch)
	}

	ed.Dispatch(EditInput{Text: "   "})
	s = ed.Dispatch(ConfirmEdit{})
	if n, _ := s.Graph.Node(SeedNodeID); n.Text != SeedText {
		t.Errorf("blank text should keep the old label, got %q", n.Text)
	}
	if s.Status() != StatusAdd {
		t.Errorf("status = %q", s.Status())
	}

	ed.Dispatch(StartEdit{ID: SeedNodeID})
	ed.Dispatch(EditInput{Text: "Goal"})
	s = ed.Dispatch(ConfirmEdit{})
	if n, _ := s.Graph.Node(SeedNodeID); n.Text != "Goal" {
		t.Errorf("text = %q, want Goal", n.Text)
	}

	ed.Dispatch(StartEdit{ID: SeedNodeID})
	ed.Dispatch(EditInput{Text: "Discarded"})
	s = ed.Dispatch(CancelEdit{})
	if n, _ := s.Graph.Node(SeedNodeID); n.Text != "Goal" {
		t.Errorf("cancelled edit applied: %q", n.Text)
	}
	if s.Editing != "" {
		t.Errorf("editing = %q", s.Editing)
	}
}

func TestToggleConnectCancelsEdit(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(StartEdit{ID: SeedNodeID})
	s := ed.Dispatch(ToggleConnect{})
	if s.Editing != "" || s.Status() != StatusConnecting {
		t.Errorf("editing=%q status=%q", s.Editing, s.Status())
	}
}

func TestDragMovesWithOffset(t *testing.T) {
	ed := newTestEditor()
	s := ed.Dispatch(PointerDown{NodeID: SeedNodeID, X: 410, Y: 220})
	if !s.Dragging() {
		t.Fatal("drag not started")
	}
	if s.Selected != SeedNodeID {
		t.Errorf("selected = %q", s.Selected)
	}

	s = ed.Dispatch(PointerMove{X: 110, Y: 120})
	at(t, s, SeedNodeID, 100, 100)

	s = ed.Dispatch(PointerMove{X: 5000, Y: -300})
	at(t, s, SeedNodeID, 1080, 0)

	s = ed.Dispatch(PointerMove{X: math.NaN(), Y: 120})
	at(t, s, SeedNodeID, 0, 100)

	s = ed.Dispatch(PointerUp{})
	if s.Dragging() {
		t.Error("drag not ended by pointer-up")
	}
	s = ed.Dispatch(PointerMove{X: 300, Y: 300})
	at(t, s, SeedNodeID, 0, 100)
}

func TestDragNeverWedges(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(CanvasClick{X: 100, Y: 100}) // n1

	// pointer-up lost: the next pointer-down starts fresh
	ed.Dispatch(PointerDown{NodeID: SeedNodeID, X: 400, Y: 200})
	s := ed.Dispatch(PointerDown{NodeID: "n1", X: 60, Y: 80})
	if !s.Dragging() || s.Drag.NodeID != "n1" {
		t.Fatalf("drag = %+v, want n1", s.Drag)
	}

	if s = ed.Dispatch(PointerDown{X: 10, Y: 10}); s.Dragging() {
		t.Error("pointer-down on canvas kept the drag")
	}

	// a canvas click with a stale drag only ends the drag
	ed.Dispatch(PointerDown{NodeID: "n1", X: 60, Y: 80})
	s = ed.Dispatch(CanvasClick{X: 900, Y: 600})
	if s.Dragging() {
		t.Error("canvas click kept the drag")
	}
	if s.Graph.Len() != 2 {
		t.Errorf("len = %d, click should only end the drag", s.Graph.Len())
	}

	// deleting the dragged node ends the drag
	ed.Dispatch(PointerDown{NodeID: "n1", X: 60, Y: 80})
	if s = ed.Dispatch(DeleteNode{ID: "n1"}); s.Dragging() {
		t.Error("drag survived deleting its node")
	}
}

func TestNoDragWhileEditing(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(StartEdit{ID: SeedNodeID})
	if s := ed.Dispatch(PointerDown{NodeID: SeedNodeID, X: 400, Y: 200}); s.Dragging() {
		t.Error("drag started while editing")
	}
}

func TestDeleteNodeForgetsTransientRefs(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(CanvasClick{X: 100, Y: 100}) // n1
	ed.Dispatch(ToggleConnect{})
	ed.Dispatch(NodeClick{ID: SeedNodeID})
	ed.Dispatch(NodeClick{ID: "n1"}) // connection n2
	ed.Dispatch(NodeClick{ID: "n1"}) // source n1

	s := ed.Dispatch(DeleteNode{ID: "n1"})
	if len(s.Graph.Connections()) != 0 {
		t.Errorf("connections = %+v", s.Graph.Connections())
	}
	if s.Source != "" || s.Selected != "" {
		t.Errorf("source=%q selected=%q", s.Source, s.Selected)
	}
	if s.Graph.Len() != 1 {
		t.Errorf("len = %d", s.Graph.Len())
	}
}

func TestDeleteConnectionEvent(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(CanvasClick{X: 100, Y: 100}) // n1
	ed.Dispatch(ToggleConnect{})
	ed.Dispatch(NodeClick{ID: SeedNodeID})
	s := ed.Dispatch(NodeClick{ID: "n1"})
	conns := s.Graph.Connections()
	if len(conns) != 1 {
		t.Fatalf("connections = %d, want 1", len(conns))
	}

	s = ed.Dispatch(DeleteConnection{ID: conns[0].ID})
	if len(s.Graph.Connections()) != 0 || s.Graph.Len() != 2 {
		t.Errorf("nodes=%d conns=%d", s.Graph.Len(), len(s.Graph.Connections()))
	}
}

func TestNodeStyleEvents(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(SetNodeColor{ID: SeedNodeID, Color: "#8b5cf6"})
	ed.Dispatch(SetNodeSize{ID: SeedNodeID, Size: models.SizeSmall})
	s := ed.Dispatch(SetNodeText{ID: SeedNodeID, Text: "Root"})
	n, _ := s.Graph.Node(SeedNodeID)
	if n.Color != "#8b5cf6" || n.Size != models.SizeSmall || n.Text != "Root" {
		t.Errorf("node = %+v", n)
	}

	if s = ed.Dispatch(SelectColor{Color: "nope"}); s.Color != models.DefaultColor {
		t.Errorf("invalid palette color applied: %q", s.Color)
	}
}

func TestClearResets(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(CanvasClick{X: 100, Y: 100})
	ed.Dispatch(ToggleConnect{})
	ed.Dispatch(NodeClick{ID: SeedNodeID})
	ed.Dispatch(ToggleMove{})
	ed.Dispatch(PointerDown{NodeID: SeedNodeID, X: 400, Y: 200})

	s := ed.Dispatch(Clear{})
	if !reflect.DeepEqual(s.Graph, SeedGraph()) {
		t.Errorf("graph = %+v, want seed", s.Graph.Nodes())
	}
	if s.Status() != StatusAdd {
		t.Errorf("status = %q", s.Status())
	}
	if s.Source != "" || s.Selected != "" || s.Dragging() || s.Moving {
		t.Errorf("transient state survived clear: %+v", s)
	}
}

func TestStatusPrecedence(t *testing.T) {
	s := NewState()
	s.Editing = SeedNodeID
	if s.Status() != StatusEditing {
		t.Errorf("status = %q, want editing", s.Status())
	}
	s.Moving = true
	if s.Status() != StatusMoving {
		t.Errorf("status = %q, want moving", s.Status())
	}
	s.Connecting = true
	if s.Status() != StatusConnecting {
		t.Errorf("status = %q, want connecting", s.Status())
	}
}

func TestUnknownNodeEventsAreNoops(t *testing.T) {
	s0 := NewState()
	ids := SequentialIDs("x")
	for _, ev := range []Event{
		NodeClick{ID: "ghost"},
		StartEdit{ID: "ghost"},
		PointerDown{NodeID: "ghost", X: 1, Y: 1},
		DeleteNode{ID: "ghost"},
		DeleteConnection{ID: "ghost"},
		SetNodeText{ID: "ghost", Text: "x"},
		ConfirmEdit{},
		EditInput{Text: "x"},
	} {
		if got := Reduce(s0, ev, ids); !reflect.DeepEqual(got, s0) {
			t.Errorf("%T changed state: %+v", ev, got)
		}
	}
}

func TestResize(t *testing.T) {
	ed := newTestEditor()
	s := ed.Dispatch(Resize{Bounds: Bounds{Width: 300, Height: 100}})
	at(t, s, SeedNodeID, 180, 40)

	s = ed.Dispatch(Resize{Bounds: Bounds{Width: 0, Height: 10}})
	if s.Bounds != (Bounds{Width: 300, Height: 100}) {
		t.Errorf("bounds = %+v, degenerate resize should be ignored", s.Bounds)
	}
}

func TestLoadReplacesGraph(t *testing.T) {
	ed := newTestEditor()
	ed.Dispatch(StartEdit{ID: SeedNodeID})
	g := NewGraph([]models.Node{node("a", 1, 1), node("b", 2, 2)}, []models.Connection{{ID: "e", From: "a", To: "b"}})
	s := ed.Dispatch(Load{Graph: g})
	if !reflect.DeepEqual(s.Graph, g) {
		t.Errorf("graph not replaced: %+v", s.Graph.Nodes())
	}
	if s.Editing != "" {
		t.Errorf("editing = %q", s.Editing)
	}
}
