package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/mindmaps/internal/account"
	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/mindmap"
	"github.com/starford/mindmaps/internal/models"
	"github.com/starford/mindmaps/internal/testutil"
)

type testEnv struct {
	router http.Handler
	maps   *mindmap.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)
	maps := mindmap.NewService(db)
	accounts := account.NewService(db, account.WithBcryptCost(bcrypt.MinCost))
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &testEnv{
		router: NewRouter(Deps{MindMaps: maps, Accounts: accounts, Events: events}),
		maps:   maps,
	}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

// register creates an account and returns its token and user id.
func (e *testEnv) register(t *testing.T, name string) (string, string) {
	t.Helper()
	var resp AuthResponse
	code := e.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	}, &resp)
	if code != http.StatusCreated {
		t.Fatalf("register %s = %d", name, code)
	}
	return resp.Token, resp.User.ID
}

func TestOwnershipEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	tok1, uid1 := env.register(t, "alice")
	tok2, _ := env.register(t, "bobby")

	var created models.MindMap
	code := env.do(t, http.MethodPost, "/mindmaps", tok1, map[string]any{"title": "Plan", "isPublic": false}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.Author != uid1 || created.Category != models.CategoryOther {
		t.Errorf("created = %+v", created)
	}
	path := "/mindmaps/" + created.ID

	var errBody errResponse
	if code := env.do(t, http.MethodGet, path, tok2, nil, &errBody); code != http.StatusForbidden {
		t.Fatalf("get by other = %d, want 403", code)
	}
	if errBody.Error == "" {
		t.Error("error body missing message")
	}
	if code := env.do(t, http.MethodGet, path, "", nil, nil); code != http.StatusForbidden {
		t.Fatalf("anonymous get = %d, want 403", code)
	}

	var got models.MindMap
	if code := env.do(t, http.MethodGet, path, tok1, nil, &got); code != http.StatusOK || got.Title != "Plan" {
		t.Fatalf("get by owner = %d %+v", code, got)
	}

	if code := env.do(t, http.MethodPut, path, tok1, map[string]any{"isPublic": true}, nil); code != http.StatusOK {
		t.Fatalf("update = %d", code)
	}
	if code := env.do(t, http.MethodGet, path, tok2, nil, nil); code != http.StatusOK {
		t.Fatalf("get public by other = %d, want 200", code)
	}
	if code := env.do(t, http.MethodPut, path, tok2, map[string]any{"title": "Mine now"}, nil); code != http.StatusForbidden {
		t.Errorf("update by other = %d, want 403", code)
	}
	if code := env.do(t, http.MethodDelete, path, tok2, nil, nil); code != http.StatusForbidden {
		t.Errorf("delete by other = %d, want 403", code)
	}

	var msg MessageResponse
	if code := env.do(t, http.MethodDelete, path, tok1, nil, &msg); code != http.StatusOK {
		t.Fatalf("delete = %d", code)
	}
	if msg.Message != "Mind map deleted successfully" {
		t.Errorf("message = %q", msg.Message)
	}
	if code := env.do(t, http.MethodGet, path, tok1, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", code)
	}
}

func TestCreateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	if code := env.do(t, http.MethodPost, "/mindmaps", "", map[string]any{"title": "x"}, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d, want 401", code)
	}
	if code := env.do(t, http.MethodPost, "/mindmaps", "bogus", map[string]any{"title": "x"}, nil); code != http.StatusUnauthorized {
		t.Errorf("bad token create = %d, want 401", code)
	}
	if code := env.do(t, http.MethodGet, "/mindmaps/my", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous my = %d, want 401", code)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.register(t, "alice")

	var errBody errResponse
	if code := env.do(t, http.MethodPost, "/mindmaps", tok, map[string]any{"title": "  "}, &errBody); code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", code)
	}
	if !strings.Contains(errBody.Error, "title") {
		t.Errorf("error = %q, want field name", errBody.Error)
	}

	dangling := map[string]any{
		"title":       "x",
		"nodes":       []models.Node{{ID: "1", Text: "a", Color: "#000", Size: models.SizeSmall}},
		"connections": []models.Connection{{ID: "c", From: "1", To: "ghost"}},
	}
	if code := env.do(t, http.MethodPost, "/mindmaps", tok, dangling, nil); code != http.StatusBadRequest {
		t.Errorf("dangling connection = %d, want 400", code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mindmaps", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestUpdateMissing(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.register(t, "alice")
	if code := env.do(t, http.MethodPut, "/mindmaps/ghost", tok, map[string]any{"title": "x"}, nil); code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", code)
	}
	if code := env.do(t, http.MethodGet, "/mindmaps/ghost", "", nil, nil); code != http.StatusNotFound {
		t.Errorf("get missing = %d, want 404", code)
	}
}

func TestListPublicEnvelope(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.register(t, "alice")
	for i := 0; i < 5; i++ {
		body := map[string]any{"title": fmt.Sprintf("Pub %d", i), "isPublic": true, "category": "Education"}
		if code := env.do(t, http.MethodPost, "/mindmaps", tok, body, nil); code != http.StatusCreated {
			t.Fatalf("create = %d", code)
		}
	}

	var page mindmap.Page
	if code := env.do(t, http.MethodGet, "/mindmaps/public?page=1&limit=2&category=All", "", nil, &page); code != http.StatusOK {
		t.Fatalf("public = %d", code)
	}
	if len(page.MindMaps) != 2 || page.TotalPages != 3 || page.Total != 5 || page.CurrentPage != 1 {
		t.Errorf("page = %+v", page)
	}

	if code := env.do(t, http.MethodGet, "/mindmaps/public?category=Business", "", nil, &page); code != http.StatusOK || page.Total != 0 {
		t.Errorf("business = %d total %d", code, page.Total)
	}
	if code := env.do(t, http.MethodGet, "/mindmaps/public?search=pub+3", "", nil, &page); code != http.StatusOK || page.Total != 1 {
		t.Errorf("search = %d total %d", code, page.Total)
	}
	if code := env.do(t, http.MethodGet, "/mindmaps/public?category=Sports", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("unknown category = %d, want 400", code)
	}

	var mine mindmap.Page
	if code := env.do(t, http.MethodGet, "/mindmaps/my?limit=10", tok, nil, &mine); code != http.StatusOK || mine.Total != 5 {
		t.Errorf("my = %d total %d", code, mine.Total)
	}
}

func TestTemplatesAndCopy(t *testing.T) {
	env := newTestEnv(t)
	tok, uid := env.register(t, "alice")

	var templates []models.MindMap
	if code := env.do(t, http.MethodGet, "/mindmaps/templates/all", "", nil, &templates); code != http.StatusOK {
		t.Fatalf("templates = %d", code)
	}
	if templates == nil || len(templates) != 0 {
		t.Errorf("templates = %v, want empty array", templates)
	}

	other, _ := env.register(t, "bobby")
	var src models.MindMap
	env.do(t, http.MethodPost, "/mindmaps", other, map[string]any{"title": "Shared", "isPublic": true}, &src)

	var cp models.MindMap
	if code := env.do(t, http.MethodPost, "/mindmaps/"+src.ID+"/copy", tok, nil, &cp); code != http.StatusCreated {
		t.Fatalf("copy = %d", code)
	}
	if cp.Author != uid || cp.IsPublic || cp.ID == src.ID {
		t.Errorf("copy = %+v", cp)
	}
}

func TestExportSVG(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.register(t, "alice")
	var m models.MindMap
	env.do(t, http.MethodPost, "/mindmaps", tok, map[string]any{
		"title":       "Drawn",
		"isPublic":    true,
		"nodes":       []models.Node{{ID: "1", Text: "Root", Color: "#ec4899", Size: models.SizeLarge}, {ID: "2", X: 300, Text: "Leaf", Color: "#000", Size: models.SizeSmall}},
		"connections": []models.Connection{{ID: "c", From: "1", To: "2"}},
	}, &m)

	req := httptest.NewRequest(http.MethodGet, "/mindmaps/"+m.ID+"/export.svg", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<svg") || !strings.Contains(body, "Leaf") || strings.Count(body, "<path ") != 1 {
		t.Errorf("svg = %s", body)
	}
}

func TestUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	tok, uid := env.register(t, "alice")

	if code := env.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret1",
	}, nil); code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", code)
	}
	if code := env.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "123",
	}, nil); code != http.StatusBadRequest {
		t.Errorf("short password = %d, want 400", code)
	}

	var login AuthResponse
	if code := env.do(t, http.MethodPost, "/users/login", "", LoginRequest{Email: "alice@example.com", Password: "secret1"}, &login); code != http.StatusOK {
		t.Fatalf("login = %d", code)
	}
	if login.Token == "" || login.User.ID != uid || login.Message != "Login successful" {
		t.Errorf("login = %+v", login)
	}
	if code := env.do(t, http.MethodPost, "/users/login", "", LoginRequest{Email: "alice@example.com", Password: "nope"}, nil); code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", code)
	}

	var me models.User
	if code := env.do(t, http.MethodGet, "/users/me", tok, nil, &me); code != http.StatusOK || me.Username != "alice" {
		t.Errorf("me = %d %+v", code, me)
	}
	if code := env.do(t, http.MethodPut, "/users/profile", tok, map[string]string{"firstName": "Alice"}, &me); code != http.StatusOK || me.FirstName != "Alice" {
		t.Errorf("profile = %d %+v", code, me)
	}
	if code := env.do(t, http.MethodPut, "/users/password", tok, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "secret2"}, nil); code != http.StatusBadRequest {
		t.Errorf("wrong current password = %d, want 400", code)
	}
	if code := env.do(t, http.MethodPut, "/users/password", tok, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}, nil); code != http.StatusOK {
		t.Errorf("change password = %d", code)
	}

	if code := env.do(t, http.MethodPost, "/users/logout", tok, nil, nil); code != http.StatusOK {
		t.Errorf("logout = %d", code)
	}
	if code := env.do(t, http.MethodGet, "/users/me", tok, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", code)
	}
}

func TestEventsMounted(t *testing.T) {
	env := newTestEnv(t)
	if code := env.do(t, http.MethodGet, "/events", "", nil, nil); code != http.StatusOK {
		t.Errorf("events = %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation(errors.New("bad")), http.StatusBadRequest},
		{apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", apperr.ErrAccessDenied), http.StatusForbidden},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrAlreadyExists, http.StatusConflict},
		{apperr.Transient("op", errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type downAuth struct{}

func (downAuth) Authenticate(context.Context, string) (string, error) {
	return "", apperr.Transient("storage: session by token", errors.New("database is locked"))
}

func TestAuthMiddlewareStoreDown(t *testing.T) {
	h := AuthMiddleware(downAuth{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTeapot {
		t.Errorf("no header = %d, want passthrough", w.Code)
	}

	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("store down = %d, want 503", w.Code)
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := CORS("https://app.example.com")(ok)
	req := httptest.NewRequest(http.MethodOptions, "/mindmaps", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Error("Authorization header not allowed")
	}

	w = httptest.NewRecorder()
	CORS("")(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTeapot || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("passthrough: code=%d origin=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}
