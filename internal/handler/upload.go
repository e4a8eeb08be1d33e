package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// parseMultipart parses a multipart request, capping the body at maxBytes.
// A request that is not multipart yields an empty form so JSON-only clients
// still work on routes that accept both.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return nil
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return apperror.ValidationFailed("files", "Invalid multipart body: "+err.Error())
	}
	return nil
}

// uploadsFromForm turns the files under field into service uploads. The
// files are opened lazily by the service.
func uploadsFromForm(r *http.Request, field string) []service.Upload {
	if r.MultipartForm == nil {
		return nil
	}
	headers := r.MultipartForm.File[field]
	out := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		out = append(out, uploadFromHeader(fh))
	}
	return out
}

func uploadFromHeader(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// formValue reads a field from the multipart form, the URL-encoded form or
// the query string, in that order.
func formValue(r *http.Request, key string) string {
	if r.MultipartForm != nil {
		if v := r.MultipartForm.Value[key]; len(v) > 0 {
			return v[0]
		}
	}
	return r.FormValue(key)
}
