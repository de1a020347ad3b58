package api

import (
	"net/http"

	"github.com/starford/mindmaps/internal/account"
)

// UserHandler holds the account route handlers.
type UserHandler struct {
	svc *account.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *account.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register handles POST /api/users/register.
//
//	@Summary		Create an account and return a bearer token
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		account.Registration	true	"New account"
//	@Success		201		{object}	AuthResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/users/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Message: "User created successfully", Token: a.Token, User: a.User})
}

// Login handles POST /api/users/login.
//
//	@Summary		Exchange email and password for a bearer token
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	AuthResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Router			/users/login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Login successful", Token: a.Token, User: a.User})
}

// Logout handles POST /api/users/logout.
//
//	@Summary		Revoke the caller's bearer token
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	MessageResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/logout [post]
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearer(r)
	if err := h.svc.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me handles GET /api/users/me.
//
//	@Summary		Get the caller's profile
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	models.User
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateProfile handles PUT /api/users/profile.
//
//	@Summary		Update the caller's first and last name
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		account.ProfilePatch	true	"Fields to overwrite"
//	@Success		200		{object}	models.User
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/profile [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p account.ProfilePatch
	if !decodeJSON(w, r, &p) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), UserID(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ChangePassword handles PUT /api/users/password.
//
//	@Summary		Change the caller's password
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	MessageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), UserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}
