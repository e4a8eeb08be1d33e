package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/repository"
	"github.com/sakif/techblogs/internal/service"
)

// PostHandler serves posts and their uploaded media.
type PostHandler struct {
	posts     *service.PostService
	identity  *service.IdentityResolver
	devMode   bool
	maxUpload int64
	logger    *slog.Logger
}

// NewPostHandler creates a PostHandler. With devMode on, callers without
// credentials act as guests; maxUpload caps a multipart request body.
func NewPostHandler(
	posts *service.PostService,
	identity *service.IdentityResolver,
	devMode bool,
	maxUpload int64,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		posts:     posts,
		identity:  identity,
		devMode:   devMode,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

type updatePostRequest struct {
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

type claimRequest struct {
	UserID string `json:"userId"`
}

// HandleList returns posts newest first. limit and offset are optional.
//
// HTTP: GET /api/posts?limit=20&offset=0
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := repository.ListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	posts, err := h.posts.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post from a multipart form with fields
// description, userName and up to three "files".
//
// HTTP: POST /api/posts
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, err)
		return
	}

	userName := formValue(r, "userName")
	post, err := h.posts.Create(r.Context(), service.CreatePostInput{
		Identity:    h.creatorIdentity(r, userName),
		Description: formValue(r, "description"),
		UserName:    userName,
		Files:       uploadsFromForm(r, "files"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate replaces a post's description.
//
// HTTP: PUT /api/posts/{id}  body {"description": "...", "userId": "..."}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	explicit := req.UserID
	if explicit == "" {
		explicit = r.URL.Query().Get("userId")
	}
	callerID, err := h.callerID(r, explicit)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), chi.URLParam(r, "id"), callerID, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleUpdateWithMedia edits description and media together. Fields:
// description, userId, keepExistingMedia (default true) and "files".
//
// HTTP: POST /api/posts/{id}/update-with-media
func (h *PostHandler) HandleUpdateWithMedia(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, err)
		return
	}

	keep := true
	if v := strings.TrimSpace(formValue(r, "keepExistingMedia")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, apperror.ValidationFailed("keepExistingMedia", "keepExistingMedia must be true or false"))
			return
		}
		keep = parsed
	}

	callerID, err := h.callerID(r, formValue(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.UpdateWithMedia(r.Context(), service.UpdateWithMediaInput{
		PostID:       chi.URLParam(r, "id"),
		CallerID:     callerID,
		Description:  formValue(r, "description"),
		KeepExisting: keep,
		Files:        uploadsFromForm(r, "files"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HTTP: DELETE /api/posts/{id}?userId=...
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.callerID(r, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id"), callerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

// HandleClaim hands a post to another user. The new owner comes from the
// userId query parameter or a {"userId"} body.
//
// HTTP: PUT /api/posts/{id}/claim
func (h *PostHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" && r.ContentLength != 0 {
		var req claimRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		userID = req.UserID
	}

	post, err := h.posts.Claim(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleServeUpload streams a stored media file back inline.
//
// HTTP: GET /api/uploads/{fileName}
func (h *PostHandler) HandleServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fileName")
	f, err := h.posts.OpenMedia(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Body.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f.Body); err != nil {
		h.logger.Warn("failed to stream upload",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}

// creatorIdentity is the identity a new post is written as. Without
// credentials the dev profile falls back to a guest named by userName.
func (h *PostHandler) creatorIdentity(r *http.Request, userName string) auth.Identity {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return id
	}
	if h.devMode {
		return auth.Guest{DisplayName: userName}
	}
	return nil
}

func (h *PostHandler) callerID(r *http.Request, explicit string) (string, error) {
	id, _ := auth.IdentityFromContext(r.Context())
	return h.identity.CallerID(r.Context(), explicit, id, h.devMode)
}

// queryInt reads a non-negative integer query parameter. Missing or
// malformed values read as zero.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
