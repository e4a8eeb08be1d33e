package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		want        model.MediaType
	}{
		{"image/png", model.MediaImage},
		{"IMAGE/JPEG", model.MediaImage},
		{"video/mp4", model.MediaVideo},
		{"application/octet-stream", model.MediaVideo},
		{"", model.MediaVideo},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.contentType))
		})
	}
}

func TestGenerateName(t *testing.T) {
	a := GenerateName("img.png")
	b := GenerateName("img.png")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_img.png"), a)
	assert.True(t, strings.HasSuffix(GenerateName("../../etc/passwd"), "_passwd"))
	assert.True(t, strings.HasSuffix(GenerateName(`C:\photos\cat.jpg`), "_cat.jpg"))
}

func TestLocal_SaveAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	sink, err := NewLocal(dir)
	require.NoError(t, err)

	name, err := sink.Save(context.Background(), "img.png", "image/png", strings.NewReader(string(pngHeader)))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "_img.png"))

	rc, contentType, err := sink.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "image/png", contentType)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data, "probing must not consume the body")
}

func TestLocal_SaveAndOpenDottedName(t *testing.T) {
	sink, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, original := range []string{"my..photo.png", "..hidden.png", "clip...mp4"} {
		t.Run(original, func(t *testing.T) {
			name, err := sink.Save(context.Background(), original, "image/png", strings.NewReader("bytes"))
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(name, "_"+original), name)

			rc, _, err := sink.Open(context.Background(), name)
			require.NoError(t, err, "a saved file must be servable by its stored name")
			data, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			assert.Equal(t, "bytes", string(data))
		})
	}
}

func TestLocal_RecreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	sink, err := NewLocal(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = sink.Save(context.Background(), "a.txt", "text/plain", strings.NewReader("hi"))
	assert.NoError(t, err)
}

func TestLocal_OpenUnknownType(t *testing.T) {
	sink, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(sink.Dir(), "blob.bin"), []byte{0x00, 0x01, 0x02, 0xfe}, 0o644))

	rc, contentType, err := sink.Open(context.Background(), "blob.bin")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, DefaultContentType, contentType)
}

func TestLocal_OpenNotFound(t *testing.T) {
	sink, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"missing.png", "../secret", `..\secret`, "a/b.png", "", ".", "..", "a\x00b"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := sink.Open(context.Background(), name)
			assert.True(t, errors.Is(err, apperror.ErrNotFound), "Open(%q) error = %v", name, err)
		})
	}
}
