package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmaps/internal/editor"
	"github.com/starford/mindmaps/internal/mindmap"
	"github.com/starford/mindmaps/internal/models"
)

// svgPadding is the margin kept around the rightmost and lowest nodes of an
// exported map.
const svgPadding = 40

// Handler holds the mind-map route handlers.
type Handler struct {
	svc *mindmap.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *mindmap.Service) *Handler {
	return &Handler{svc: svc}
}

func pageRequest(r *http.Request) mindmap.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return mindmap.PageRequest{Page: page, Limit: limit}
}

// CreateMindMap handles POST /api/mindmaps.
//
//	@Summary		Create a mind map owned by the caller
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.MindMapDraft	true	"Mind map to create"
//	@Success		201		{object}	models.MindMap
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps [post]
func (h *Handler) CreateMindMap(w http.ResponseWriter, r *http.Request) {
	var d models.MindMapDraft
	if !decodeJSON(w, r, &d) {
		return
	}
	m, err := h.svc.Create(r.Context(), d, UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMindMap handles GET /api/mindmaps/{id}.
//
//	@Summary		Get a public or owned mind map
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Mind map id"
//	@Success		200	{object}	models.MindMap
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/mindmaps/{id} [get]
func (h *Handler) GetMindMap(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMindMap handles PUT /api/mindmaps/{id}. Fields present in the body
// overwrite the stored document; absent fields are kept.
//
//	@Summary		Update an owned mind map
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Mind map id"
//	@Param			body	body		models.MindMapPatch	true	"Fields to overwrite"
//	@Success		200		{object}	models.MindMap
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [put]
func (h *Handler) UpdateMindMap(w http.ResponseWriter, r *http.Request) {
	var p models.MindMapPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	m, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p, UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMindMap handles DELETE /api/mindmaps/{id}.
//
//	@Summary		Delete an owned mind map
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Mind map id"
//	@Success		200	{object}	MessageResponse
//	@Failure		401	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [delete]
func (h *Handler) DeleteMindMap(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id"), UserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Mind map deleted successfully"})
}

// CopyMindMap handles POST /api/mindmaps/{id}/copy. The copy is private
// and owned by the caller.
//
//	@Summary		Copy a public or owned mind map
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Mind map id"
//	@Success		201	{object}	models.MindMap
//	@Failure		401	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id}/copy [post]
func (h *Handler) CopyMindMap(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Copy(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMine handles GET /api/mindmaps/my.
//
//	@Summary		List the caller's mind maps, most recently updated first
//	@Tags			mindmaps
//	@Produce		json
//	@Param			page	query		int	false	"Page number (1-based)"
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	mindmap.Page
//	@Security		BearerAuth
//	@Router			/mindmaps/my [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListMine(r.Context(), UserID(r.Context()), pageRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListPublic handles GET /api/mindmaps/public.
//
//	@Summary		List public mind maps, most recently created first
//	@Tags			mindmaps
//	@Produce		json
//	@Param			page		query		int		false	"Page number (1-based)"
//	@Param			limit		query		int		false	"Page size"
//	@Param			category	query		string	false	"Category, or All"
//	@Param			search		query		string	false	"Free text over title, description, tags"
//	@Success		200			{object}	mindmap.Page
//	@Router			/mindmaps/public [get]
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListPublic(r.Context(), mindmap.PublicFilter{
		PageRequest: pageRequest(r),
		Category:    q.Get("category"),
		Search:      q.Get("search"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListTemplates handles GET /api/mindmaps/templates/all.
//
//	@Summary		List the template library
//	@Tags			mindmaps
//	@Produce		json
//	@Success		200	{array}	models.MindMap
//	@Router			/mindmaps/templates/all [get]
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ExportSVG handles GET /api/mindmaps/{id}/export.svg.
//
//	@Summary		Render a public or owned mind map as SVG
//	@Tags			mindmaps
//	@Produce		image/svg+xml
//	@Param			id	path		string	true	"Mind map id"
//	@Success		200	{string}	string	"SVG document"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/mindmaps/{id}/export.svg [get]
func (h *Handler) ExportSVG(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	g := editor.NewGraph(m.Nodes, m.Connections)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_ = editor.RenderSVG(w, g, editor.FitBounds(g, svgPadding))
}
