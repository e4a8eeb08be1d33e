package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/service"
)

// CourseHandler serves the course catalog.
type CourseHandler struct {
	courses   *service.CourseService
	maxUpload int64
	logger    *slog.Logger
}

func NewCourseHandler(courses *service.CourseService, maxUpload int64, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{courses: courses, maxUpload: maxUpload, logger: logger}
}

// HTTP: POST /api/courses/create
func (h *CourseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var course model.Course
	if err := decodeJSON(w, r, &course); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.courses.Create(r.Context(), &course)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HTTP: GET /api/courses/getall
func (h *CourseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// HTTP: GET /api/courses/get/{id}
func (h *CourseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// HandleUpdate overwrites the whole course.
//
// HTTP: PUT /api/courses/update/{id}
func (h *CourseHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var course model.Course
	if err := decodeJSON(w, r, &course); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.courses.Update(r.Context(), chi.URLParam(r, "id"), &course)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HTTP: DELETE /api/courses/delete/{id}
func (h *CourseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.courses.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Course deleted successfully"})
}

// HandleUpload stores a course video from the multipart field "file" and
// answers with the stored file name as plain text.
//
// HTTP: POST /api/courses/upload
func (h *CourseHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, err)
		return
	}

	files := uploadsFromForm(r, "file")
	if len(files) == 0 {
		writeError(w, apperror.ValidationFailed("file", "File is empty"))
		return
	}

	name, err := h.courses.UploadVideo(r.Context(), files[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, name)
}
