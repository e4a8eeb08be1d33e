// Package media stores uploaded files and serves them back by name.
//
// A stored name is "<uuid>_<original base name>", so two uploads of the same
// file never collide and the original name stays readable.
package media

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
)

// DefaultContentType is reported when a file's type cannot be determined.
const DefaultContentType = "application/octet-stream"

// Sink is a place uploaded files are written to and read back from.
type Sink interface {
	// Save writes r under a freshly generated name and returns that name.
	Save(ctx context.Context, originalName, contentType string, r io.Reader) (string, error)

	// Open returns the stored file and its content type. A name that does
	// not resolve reports apperror.ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// Classify tags a declared content type. Anything that is not "image/*",
// including an empty type, counts as video.
func Classify(contentType string) model.MediaType {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return model.MediaImage
	}
	return model.MediaVideo
}

// GenerateName returns the stored name for an upload called originalName.
// Directory components are stripped from the client-supplied name.
func GenerateName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	return uuid.NewString() + "_" + base
}

// checkName rejects names that could escape the storage root. A name with
// no separators that is not "." or ".." always stays inside it, so dots
// elsewhere in the name are allowed.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return apperror.NotFound("file", name)
	}
	return nil
}
