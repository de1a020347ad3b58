// Package mindmap is the persistence contract for mind-map documents:
// CRUD with ownership checks and the paginated listings.
package mindmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
	"github.com/starford/mindmaps/internal/storage"
)

// Pagination limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// CategoryAll is the listing filter value that matches every category.
const CategoryAll = "All"

// ChangeKind names a document lifecycle event.
type ChangeKind string

const (
	Created ChangeKind = "mindmap.created"
	Updated ChangeKind = "mindmap.updated"
	Deleted ChangeKind = "mindmap.deleted"
)

// Change describes one committed write.
type Change struct {
	Kind  ChangeKind
	ID    string
	Title string
	// Public is the visibility after the write; WasPublic before it.
	Public    bool
	WasPublic bool
}

// Notifier receives committed changes. Implementations must not block.
type Notifier interface {
	MindMapChanged(c Change)
}

// PageRequest selects one page of a listing. Zero values take the defaults.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize() (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, (page - 1) * limit
}

// PublicFilter narrows the public gallery.
type PublicFilter struct {
	PageRequest
	// Category is an exact category name. Empty or "All" matches any.
	Category string
	Search   string
}

// Page is one page of a listing.
type Page struct {
	MindMaps    []models.MindMap `json:"mindMaps"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Total       int              `json:"total"`
}

func newPage(items []models.MindMap, total, page, limit int) *Page {
	if items == nil {
		items = []models.MindMap{}
	}
	return &Page{
		MindMaps:    items,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Total:       total,
	}
}

// Service enforces ownership and validation on top of a MindMapStore.
type Service struct {
	store  storage.MindMapStore
	now    func() time.Time
	newID  func() string
	notify Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides the UUID document id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithNotifier registers a receiver for committed changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// NewService creates a mind-map service.
func NewService(store storage.MindMapStore, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new private-by-default document owned by ownerID.
func (s *Service) Create(ctx context.Context, d models.MindMapDraft, ownerID string) (*models.MindMap, error) {
	if ownerID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	now := s.now().UTC()
	m := &models.MindMap{
		ID:          s.newID(),
		Title:       d.Title,
		Description: d.Description,
		Nodes:       d.Nodes,
		Connections: d.Connections,
		Author:      ownerID,
		IsPublic:    d.IsPublic,
		Tags:        d.Tags,
		Category:    d.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	if err := s.store.InsertMindMap(ctx, m); err != nil {
		return nil, fmt.Errorf("create mindmap: %w", err)
	}
	s.publish(Created, m, false)
	return m, nil
}

// Get returns document id if it is public or owned by requesterID. An
// empty requesterID is anonymous.
func (s *Service) Get(ctx context.Context, id, requesterID string) (*models.MindMap, error) {
	m, err := s.store.GetMindMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsPublic && m.Author != requesterID {
		return nil, apperr.ErrAccessDenied
	}
	return m, nil
}

// Update overwrites every present field of p on document id. Only the
// author may update.
func (s *Service) Update(ctx context.Context, id string, p models.MindMapPatch, requesterID string) (*models.MindMap, error) {
	m, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	wasPublic := m.IsPublic
	p.Apply(m)
	m.Normalize()
	m.UpdatedAt = s.now().UTC()
	if err := m.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	if err := s.store.UpdateMindMap(ctx, m); err != nil {
		return nil, fmt.Errorf("update mindmap: %w", err)
	}
	s.publish(Updated, m, wasPublic)
	return m, nil
}

// Remove permanently deletes document id. Only the author may remove.
func (s *Service) Remove(ctx context.Context, id, requesterID string) error {
	m, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMindMap(ctx, id); err != nil {
		return fmt.Errorf("delete mindmap: %w", err)
	}
	s.publish(Deleted, m, m.IsPublic)
	return nil
}

// Copy stores a private, non-template copy of a readable document owned by
// requesterID.
func (s *Service) Copy(ctx context.Context, id, requesterID string) (*models.MindMap, error) {
	if requesterID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	src, err := s.Get(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, models.MindMapDraft{
		Title:       src.Title,
		Description: src.Description,
		Nodes:       src.Nodes,
		Connections: src.Connections,
		Tags:        src.Tags,
		Category:    src.Category,
	}, requesterID)
}

// ListMine returns the requester's documents, most recently updated first.
func (s *Service) ListMine(ctx context.Context, requesterID string, pr PageRequest) (*Page, error) {
	if requesterID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	page, limit, offset := pr.normalize()
	items, total, err := s.store.ListByAuthor(ctx, requesterID, limit, offset)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, limit), nil
}

// ListPublic returns public documents, most recently created first.
func (s *Service) ListPublic(ctx context.Context, f PublicFilter) (*Page, error) {
	q := storage.PublicQuery{Search: strings.TrimSpace(f.Search)}
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, CategoryAll) {
		cat, ok := models.ParseCategory(c)
		if !ok {
			return nil, apperr.Validation(fmt.Errorf("category: unknown category %q", c))
		}
		q.Category = cat
	}
	page, limit, offset := f.normalize()
	q.Limit, q.Offset = limit, offset
	items, total, err := s.store.ListPublic(ctx, q)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, limit), nil
}

// ListTemplates returns every public template, most recently created first.
func (s *Service) ListTemplates(ctx context.Context) ([]models.MindMap, error) {
	items, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.MindMap{}
	}
	return items, nil
}

func (s *Service) owned(ctx context.Context, id, requesterID string) (*models.MindMap, error) {
	if requesterID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	m, err := s.store.GetMindMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Author != requesterID {
		return nil, apperr.ErrAccessDenied
	}
	return m, nil
}

func (s *Service) publish(kind ChangeKind, m *models.MindMap, wasPublic bool) {
	if s.notify == nil {
		return
	}
	s.notify.MindMapChanged(Change{Kind: kind, ID: m.ID, Title: m.Title, Public: m.IsPublic, WasPublic: wasPublic})
}

// IsClientError reports whether err is caused by the request rather than
// by the store.
func IsClientError(err error) bool {
	for _, target := range []error{apperr.ErrValidation, apperr.ErrNotFound, apperr.ErrAccessDenied, apperr.ErrUnauthenticated, apperr.ErrAlreadyExists} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
