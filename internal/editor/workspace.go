package editor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
)

// Persister is the CRUD surface the editor saves to and loads from.
type Persister interface {
	Get(ctx context.Context, id string) (*models.MindMap, error)
	Create(ctx context.Context, d models.MindMapDraft) (*models.MindMap, error)
	Update(ctx context.Context, id string, p models.MindMapPatch) (*models.MindMap, error)
}

// Workspace binds an Editor to one persisted document. It talks to the
// Persister only when Load, LoadTemplate, or Save is called.
type Workspace struct {
	Editor *Editor
	// Draft holds the metadata used when the document is saved for the
	// first time.
	Draft models.MindMapDraft

	store   Persister
	timeout time.Duration
	doc     *models.MindMap
	saved   Graph
}

// NewWorkspace returns a workspace with an unsaved seed document. Every
// persistence call is bounded by timeout when it is positive.
func NewWorkspace(store Persister, timeout time.Duration, opts ...Option) *Workspace {
	ed := New(opts...)
	return &Workspace{Editor: ed, store: store, timeout: timeout, saved: ed.Graph()}
}

// Document returns the last loaded or saved document, or nil when the
// workspace has never been saved.
func (w *Workspace) Document() *models.MindMap {
	return w.doc
}

// DocumentID returns the id of the bound document, or "" when unsaved.
func (w *Workspace) DocumentID() string {
	if w.doc == nil {
		return ""
	}
	return w.doc.ID
}

// Dirty reports whether the graph changed since the last load or save.
func (w *Workspace) Dirty() bool {
	g := w.Editor.Graph()
	return !reflect.DeepEqual(g.nodes, w.saved.nodes) || !reflect.DeepEqual(g.conns, w.saved.conns)
}

// Load fetches document id and replaces the editor graph. On error the
// editor is left exactly as it was.
func (w *Workspace) Load(ctx context.Context, id string) error {
	m, err := w.get(ctx, id)
	if err != nil {
		return err
	}
	w.bind(m)
	return nil
}

// LoadTemplate starts a new unsaved document from a copy of document id.
// The next Save creates a new document owned by the caller.
func (w *Workspace) LoadTemplate(ctx context.Context, id string) error {
	m, err := w.get(ctx, id)
	if err != nil {
		return err
	}
	g := NewGraph(m.Nodes, m.Connections)
	w.Editor.Dispatch(Load{Graph: g})
	w.doc = nil
	w.saved = Graph{}
	w.Draft = models.MindMapDraft{
		Title:       m.Title,
		Description: m.Description,
		Tags:        append([]string{}, m.Tags...),
		Category:    m.Category,
	}
	return nil
}

// Save creates the document on first call and afterwards updates its nodes
// and connections. Errors are returned unchanged for display; nothing is
// retried.
func (w *Workspace) Save(ctx context.Context) (*models.MindMap, error) {
	ctx, cancel := w.bound(ctx)
	defer cancel()

	g := w.Editor.Graph()
	nodes, conns := g.Nodes(), g.Connections()

	var (
		m   *models.MindMap
		err error
	)
	if w.doc == nil {
		d := w.Draft
		d.Nodes, d.Connections = nodes, conns
		m, err = w.store.Create(ctx, d)
	} else {
		m, err = w.store.Update(ctx, w.doc.ID, models.MindMapPatch{Nodes: &nodes, Connections: &conns})
	}
	if err != nil {
		return nil, deadline("editor: save", err)
	}
	w.doc = m
	w.saved = g
	return m, nil
}

func (w *Workspace) get(ctx context.Context, id string) (*models.MindMap, error) {
	ctx, cancel := w.bound(ctx)
	defer cancel()
	m, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, deadline("editor: load", err)
	}
	return m, nil
}

func (w *Workspace) bind(m *models.MindMap) {
	g := NewGraph(m.Nodes, m.Connections)
	w.Editor.Dispatch(Load{Graph: g})
	w.doc = m
	w.Draft = models.MindMapDraft{Title: m.Title, Description: m.Description, Tags: m.Tags, Category: m.Category, IsPublic: m.IsPublic}
	w.saved = w.Editor.Graph()
}

func (w *Workspace) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout > 0 {
		return context.WithTimeout(ctx, w.timeout)
	}
	return context.WithCancel(ctx)
}

// deadline marks timeouts as retryable when the persister did not.
func deadline(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !apperr.IsRetryable(err) {
		return apperr.Transient(op, err)
	}
	if apperr.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
