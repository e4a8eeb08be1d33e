// Package service holds the business rules of the blog backend: the user
// directory and follow graph, identity resolution, posts and their media,
// comments, and the course catalog.
//
// Services take repository interfaces, never a concrete backend, and return
// apperror kinds that the handler layer maps to HTTP status codes. Nothing
// here knows about HTTP.
package service

import (
	"io"
	"strings"
)

// Upload is one file from a multipart request. Open is called at most once
// and only when the file is actually stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// empty reports whether the upload carries nothing worth storing: no bytes
// or no usable name. Such files are skipped, not rejected.
func (u Upload) empty() bool {
	return u.Size <= 0 || strings.TrimSpace(u.Filename) == "" || u.Open == nil
}

func countNonEmpty(files []Upload) int {
	n := 0
	for _, f := range files {
		if !f.empty() {
			n++
		}
	}
	return n
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MediaFile is an opened stored file. The caller closes Body.
type MediaFile struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}
