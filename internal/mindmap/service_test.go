package mindmap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
	"github.com/starford/mindmaps/internal/storage"
	"github.com/starford/mindmaps/internal/testutil"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) MindMapChanged(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// tickingClock advances one second per call so orderings are deterministic.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewService(testutil.TestDB(t), WithClock(tickingClock()), WithNotifier(rec)), rec
}

func TestOwnershipScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, models.MindMapDraft{Title: "Plan", IsPublic: false}, "U1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, m.ID, "U2"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("Get by U2: err = %v, want ErrAccessDenied", err)
	}
	if _, err := svc.Get(ctx, m.ID, ""); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("anonymous Get: err = %v, want ErrAccessDenied", err)
	}
	got, err := svc.Get(ctx, m.ID, "U1")
	if err != nil {
		t.Fatalf("Get by U1: %v", err)
	}
	if got.Title != "Plan" {
		t.Errorf("Title = %q, want Plan", got.Title)
	}

	public := true
	if _, err := svc.Update(ctx, m.ID, models.MindMapPatch{IsPublic: &public}, "U1"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Get(ctx, m.ID, "U2"); err != nil {
		t.Fatalf("Get by U2 after publish: %v", err)
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, rec := newTestService(t)
	m, err := svc.Create(context.Background(), models.MindMapDraft{Title: "  Plan  "}, "U1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Title != "Plan" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Author != "U1" || m.IsPublic || m.Template {
		t.Errorf("unexpected flags: %+v", m)
	}
	if m.Category != models.CategoryOther {
		t.Errorf("Category = %q", m.Category)
	}
	if m.Nodes == nil || m.Connections == nil || m.Tags == nil {
		t.Error("collections should default to empty, not nil")
	}
	if len(rec.changes) != 1 || rec.changes[0].Kind != Created || rec.changes[0].Public {
		t.Errorf("changes = %+v", rec.changes)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft models.MindMapDraft
	}{
		{"missing title", models.MindMapDraft{}},
		{"blank title", models.MindMapDraft{Title: "   "}},
		{"bad category", models.MindMapDraft{Title: "x", Category: "Sports"}},
		{"dangling connection", models.MindMapDraft{
			Title:       "x",
			Nodes:       []models.Node{{ID: "1", Text: "a", Color: "#000", Size: models.SizeSmall}},
			Connections: []models.Connection{{ID: "c", From: "1", To: "2"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.draft, "U1"); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if _, err := svc.Create(ctx, models.MindMapDraft{Title: "x"}, ""); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("anonymous create: err = %v", err)
	}
	if len(rec.changes) != 0 {
		t.Errorf("failed creates must not notify: %+v", rec.changes)
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m, err := svc.Create(ctx, models.MindMapDraft{
		Title: "Plan", Description: "old", IsPublic: true, Tags: []string{"a"},
	}, "U1")
	if err != nil {
		t.Fatal(err)
	}

	empty, no := "", false
	got, err := svc.Update(ctx, m.ID, models.MindMapPatch{Description: &empty, IsPublic: &no}, "U1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "" || got.IsPublic {
		t.Errorf("present empty/false fields must overwrite: %+v", got)
	}
	if got.Title != "Plan" || len(got.Tags) != 1 {
		t.Errorf("absent fields must be kept: %+v", got)
	}
	if !got.UpdatedAt.After(m.UpdatedAt) {
		t.Errorf("UpdatedAt not refreshed: %v <= %v", got.UpdatedAt, m.UpdatedAt)
	}

	stored, err := svc.Get(ctx, m.ID, "U1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Description != "" || stored.IsPublic {
		t.Errorf("stored = %+v", stored)
	}

	blank := "  "
	if _, err := svc.Update(ctx, m.ID, models.MindMapPatch{Title: &blank}, "U1"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank title: err = %v, want ErrValidation", err)
	}
}

func TestUpdateAndRemoveOwnership(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	m, err := svc.Create(ctx, models.MindMapDraft{Title: "Plan", IsPublic: true}, "U1")
	if err != nil {
		t.Fatal(err)
	}
	title := "Hijack"

	if _, err := svc.Update(ctx, m.ID, models.MindMapPatch{Title: &title}, "U2"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("Update by U2: err = %v", err)
	}
	if _, err := svc.Update(ctx, "missing", models.MindMapPatch{Title: &title}, "U1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update missing: err = %v", err)
	}
	if err := svc.Remove(ctx, m.ID, "U2"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("Remove by U2: err = %v", err)
	}
	if err := svc.Remove(ctx, m.ID, "U1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Get(ctx, m.ID, "U1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after remove: err = %v", err)
	}
	if err := svc.Remove(ctx, m.ID, "U1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Remove: err = %v", err)
	}

	kinds := []ChangeKind{}
	for _, c := range rec.changes {
		kinds = append(kinds, c.Kind)
	}
	if fmt.Sprint(kinds) != fmt.Sprint([]ChangeKind{Created, Deleted}) {
		t.Errorf("kinds = %v", kinds)
	}
	if !rec.changes[1].WasPublic {
		t.Error("delete of a public map should report WasPublic")
	}
}

func TestListPublicPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, models.MindMapDraft{Title: "Pub " + strconv.Itoa(i), IsPublic: true}, "U1"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create(ctx, models.MindMapDraft{Title: "Private"}, "U1"); err != nil {
		t.Fatal(err)
	}

	page, err := svc.ListPublic(ctx, PublicFilter{PageRequest: PageRequest{Page: 1, Limit: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.MindMaps) != 2 || page.TotalPages != 3 || page.Total != 5 || page.CurrentPage != 1 {
		t.Fatalf("page = %d items, totalPages %d, total %d, current %d",
			len(page.MindMaps), page.TotalPages, page.Total, page.CurrentPage)
	}
	if page.MindMaps[0].Title != "Pub 4" {
		t.Errorf("first = %q, want newest", page.MindMaps[0].Title)
	}

	last, err := svc.ListPublic(ctx, PublicFilter{PageRequest: PageRequest{Page: 3, Limit: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(last.MindMaps) != 1 || last.MindMaps[0].Title != "Pub 0" {
		t.Errorf("last page = %+v", last.MindMaps)
	}

	beyond, err := svc.ListPublic(ctx, PublicFilter{PageRequest: PageRequest{Page: 9, Limit: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if beyond.MindMaps == nil || len(beyond.MindMaps) != 0 {
		t.Errorf("page past the end should be empty, got %v", beyond.MindMaps)
	}
}

func TestListPublicFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seed := []models.MindMapDraft{
		{Title: "Roadmap", IsPublic: true, Category: models.CategoryBusiness},
		{Title: "Biology", IsPublic: true, Category: models.CategoryEducation, Tags: []string{"science"}},
		{Title: "Poems", IsPublic: true, Category: models.CategoryCreative, Description: "verses about science"},
	}
	for _, d := range seed {
		if _, err := svc.Create(ctx, d, "U1"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter PublicFilter
		want   int
	}{
		{"all", PublicFilter{Category: CategoryAll}, 3},
		{"empty category", PublicFilter{}, 3},
		{"category", PublicFilter{Category: "Education"}, 1},
		{"category case", PublicFilter{Category: "business"}, 1},
		{"search tag and description", PublicFilter{Search: "science"}, 2},
		{"search and category", PublicFilter{Search: "science", Category: "Creative"}, 1},
		{"no match", PublicFilter{Search: "zzz"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListPublic(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if page.Total != tt.want {
				t.Errorf("total = %d, want %d", page.Total, tt.want)
			}
		})
	}

	if _, err := svc.ListPublic(ctx, PublicFilter{Category: "Sports"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown category: err = %v", err)
	}
}

func TestListMine(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, models.MindMapDraft{Title: "A"}, "U1")
	_, _ = svc.Create(ctx, models.MindMapDraft{Title: "B"}, "U1")
	_, _ = svc.Create(ctx, models.MindMapDraft{Title: "Other"}, "U2")

	title := "A2"
	if _, err := svc.Update(ctx, a.ID, models.MindMapPatch{Title: &title}, "U1"); err != nil {
		t.Fatal(err)
	}

	page, err := svc.ListMine(ctx, "U1", PageRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.TotalPages != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.MindMaps[0].Title != "A2" {
		t.Errorf("first = %q, want most recently updated", page.MindMaps[0].Title)
	}
	if _, err := svc.ListMine(ctx, "", PageRequest{}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("anonymous ListMine: err = %v", err)
	}
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		in                      PageRequest
		page, limit, wantOffset int
	}{
		{PageRequest{}, 1, DefaultLimit, 0},
		{PageRequest{Page: -3, Limit: 5}, 1, 5, 0},
		{PageRequest{Page: 3, Limit: 5}, 3, 5, 10},
		{PageRequest{Page: 2, Limit: 1000}, 2, MaxLimit, MaxLimit},
	}
	for _, tt := range tests {
		page, limit, offset := tt.in.normalize()
		if page != tt.page || limit != tt.limit || offset != tt.wantOffset {
			t.Errorf("%+v.normalize() = %d, %d, %d", tt.in, page, limit, offset)
		}
	}
}

func TestCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	src, err := svc.Create(ctx, models.MindMapDraft{
		Title:    "Brainstorming",
		IsPublic: true,
		Nodes:    []models.Node{{ID: "1", Text: "Idea", Color: "#000", Size: models.SizeLarge}},
		Category: models.CategoryCreative,
	}, "U1")
	if err != nil {
		t.Fatal(err)
	}

	cp, err := svc.Copy(ctx, src.ID, "U2")
	if err != nil {
		t.Fatal(err)
	}
	if cp.ID == src.ID || cp.Author != "U2" || cp.IsPublic || cp.Template {
		t.Errorf("copy = %+v", cp)
	}
	if len(cp.Nodes) != 1 || cp.Category != models.CategoryCreative {
		t.Errorf("copy content = %+v", cp)
	}

	private, _ := svc.Create(ctx, models.MindMapDraft{Title: "Secret"}, "U1")
	if _, err := svc.Copy(ctx, private.ID, "U2"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("copy of private map: err = %v", err)
	}
}

func TestListTemplates(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	got, err := svc.ListTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("templates = %v, want empty", got)
	}

	tpl := &models.MindMap{
		ID: "t1", Title: "Study Notes", Author: "system", IsPublic: true, Template: true,
		Category: models.CategoryEducation, Nodes: []models.Node{}, Connections: []models.Connection{}, Tags: []string{},
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := db.UpsertTemplate(ctx, storage.TemplateSource{Slug: "study", MindMapID: "t1", Checksum: "x"}, tpl); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, models.MindMapDraft{Title: "Not a template", IsPublic: true}, "U1"); err != nil {
		t.Fatal(err)
	}

	got, err = svc.ListTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("templates = %+v", got)
	}

	title := "Edited"
	if _, err := svc.Update(ctx, "t1", models.MindMapPatch{Title: &title}, "U1"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("template update by user: err = %v", err)
	}
}

type failingStore struct{ storage.MindMapStore }

func (failingStore) GetMindMap(context.Context, string) (*models.MindMap, error) {
	return nil, apperr.Transient("storage: get mindmap", errors.New("disk I/O error"))
}

func (failingStore) InsertMindMap(context.Context, *models.MindMap) error {
	return apperr.Transient("storage: insert mindmap", errors.New("disk I/O error"))
}

func (failingStore) ListPublic(context.Context, storage.PublicQuery) ([]models.MindMap, int, error) {
	return nil, 0, apperr.Transient("storage: list public", errors.New("disk I/O error"))
}

func TestStoreFailuresSurface(t *testing.T) {
	rec := &recorder{}
	svc := NewService(failingStore{}, WithNotifier(rec))
	ctx := context.Background()

	if _, err := svc.Get(ctx, "x", "U1"); !apperr.IsRetryable(err) {
		t.Errorf("Get: err = %v, want transient", err)
	}
	if _, err := svc.Create(ctx, models.MindMapDraft{Title: "x"}, "U1"); !apperr.IsRetryable(err) {
		t.Errorf("Create: err = %v, want transient", err)
	}
	if page, err := svc.ListPublic(ctx, PublicFilter{}); !apperr.IsRetryable(err) || page != nil {
		t.Errorf("ListPublic: page = %v, err = %v", page, err)
	}
	if len(rec.changes) != 0 {
		t.Errorf("failed writes must not notify: %+v", rec.changes)
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(apperr.Validation(errors.New("bad"))) {
		t.Error("validation should be a client error")
	}
	if IsClientError(apperr.Transient("op", errors.New("down"))) {
		t.Error("transient should not be a client error")
	}
}
