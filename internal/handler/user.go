package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/service"
)

// UserHandler serves the user directory and follow graph.
type UserHandler struct {
	users  *service.UserService
	posts  *service.PostService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, posts *service.PostService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, posts: posts, logger: logger}
}

type profileRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

func (p profileRequest) input() service.ProfileInput {
	return service.ProfileInput{Name: p.Name, Email: p.Email, ProfilePic: p.ProfilePic}
}

// HandleList returns every user.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: GET /api/users/email/{email}
func (h *UserHandler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: POST /api/users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HTTP: PUT /api/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetPassword stores a new password. The body is either the bare
// password or {"password": "..."}.
//
// HTTP: PUT /api/users/{id}/password
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	password, err := readPassword(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.SetPassword(r.Context(), chi.URLParam(r, "id"), password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated"})
}

// HTTP: PUT /api/users/{id}/follow/{targetId}
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Follow(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: PUT /api/users/{id}/unfollow/{targetId}
func (h *UserHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Unfollow(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: GET /api/users/{id}/followers
func (h *UserHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListFollowers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /api/users/{id}/following
func (h *UserHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListFollowing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandlePosts lists one user's posts, newest first.
//
// HTTP: GET /api/users/{id}/posts
func (h *UserHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func readPassword(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return "", apperror.ValidationFailed("password", "Invalid request body")
	}

	raw := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(raw, "{"):
		var req struct {
			Password string `json:"password"`
		}
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return "", apperror.ValidationFailed("password", "Invalid JSON body")
		}
		return req.Password, nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return "", apperror.ValidationFailed("password", "Invalid JSON body")
		}
		return s, nil
	default:
		return raw, nil
	}
}
