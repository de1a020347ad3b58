package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/mindmaps/internal/account"
	"github.com/starford/mindmaps/internal/mindmap"
)

// Deps are the collaborators the API routes need.
type Deps struct {
	MindMaps *mindmap.Service
	Accounts *account.Service
	// Events, if non-nil, is mounted at GET /events outside the request
	// timeout so streams stay open.
	Events http.Handler
	// RequestTimeout bounds every non-streaming request when positive.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.MindMaps)
	uh := NewUserHandler(d.Accounts)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.Accounts))

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}

		r.Route("/mindmaps", func(r chi.Router) {
			r.Get("/public", h.ListPublic)
			r.Get("/templates/all", h.ListTemplates)
			r.Get("/{id}", h.GetMindMap)
			r.Get("/{id}/export.svg", h.ExportSVG)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/", h.CreateMindMap)
				r.Get("/my", h.ListMine)
				r.Put("/{id}", h.UpdateMindMap)
				r.Delete("/{id}", h.DeleteMindMap)
				r.Post("/{id}/copy", h.CopyMindMap)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", uh.Register)
			r.Post("/login", uh.Login)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/logout", uh.Logout)
				r.Get("/me", uh.Me)
				r.Put("/profile", uh.UpdateProfile)
				r.Put("/password", uh.ChangePassword)
			})
		})
	})

	return r
}
