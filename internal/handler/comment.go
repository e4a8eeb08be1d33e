package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/service"
)

// CommentHandler serves comments.
type CommentHandler struct {
	comments *service.CommentService
	identity *service.IdentityResolver
	devMode  bool
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, identity *service.IdentityResolver, devMode bool, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, identity: identity, devMode: devMode, logger: logger}
}

type createCommentRequest struct {
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Content  string `json:"content"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// HandleList returns comments in creation order.
//
// HTTP: GET /api/comments?postId=...
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), r.URL.Query().Get("postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HTTP: GET /api/comments/{id}
func (h *CommentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// HandleCreate adds a comment. Without a userId in the body a signed-in
// caller comments as themselves and anyone else as a guest.
//
// HTTP: POST /api/comments
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID, _ = auth.UserIDFromContext(r.Context())
	}

	comment, err := h.comments.Create(r.Context(), service.CreateCommentInput{
		PostID:   req.PostID,
		UserID:   userID,
		UserName: req.UserName,
		Content:  req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HTTP: PUT /api/comments/{id}  body {"content": "..."}
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	comment, err := h.comments.Update(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// HandleDelete removes a comment when the caller wrote it or its post.
// Other callers get the same 204 and nothing changes.
//
// HTTP: DELETE /api/comments/{id}/{userId}
// HTTP: DELETE /api/comments/{id}?userId=...
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	explicit := chi.URLParam(r, "userId")
	if explicit == "" {
		explicit = r.URL.Query().Get("userId")
	}

	id, _ := auth.IdentityFromContext(r.Context())
	callerID, err := h.identity.CallerID(r.Context(), explicit, id, h.devMode)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.comments.Delete(r.Context(), chi.URLParam(r, "id"), callerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
