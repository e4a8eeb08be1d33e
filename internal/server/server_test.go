package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/techblogs/internal/config"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/server"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newTestServerWithProfile(t, config.ProfileDev)
}

func newTestServerWithProfile(t *testing.T, profile string) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Port:               0,
		Profile:            profile,
		UploadDir:          t.TempDir(),
		CourseUploadDir:    t.TempDir(),
		AllowedOrigins:     []string{"http://localhost:5173"},
		StoreBackend:       config.StoreSQLite,
		DBPath:             ":memory:",
		MediaBackend:       config.MediaLocal,
		JWTSecret:          "server-test-secret-0123456789",
		RateLimitPerMinute: 10000,
		RateLimitBurst:     10000,
		MaxUploadMB:        10,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := server.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthAndStatus(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["authenticated"])
}

func TestRegisterLoginMe(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, jsonRequest(http.MethodPost, "/api/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"secret123"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"wrong-pass"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"secret123"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	cookie := sessionCookie(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rr = do(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[model.User](t, rr)
	assert.Equal(t, "ada@example.com", me.Email)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGoogleAssertionIsIdempotent(t *testing.T) {
	h := newTestServer(t)
	body := `{"name":"Grace","email":"grace@example.com","profilePic":"g.png"}`

	first := decode[model.User](t, do(t, h, jsonRequest(http.MethodPost, "/api/auth/google", body)))
	second := decode[model.User](t, do(t, h, jsonRequest(http.MethodPost, "/api/auth/google", body)))
	assert.Equal(t, first.ID, second.ID)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	users := decode[[]model.User](t, rr)
	assert.Len(t, users, 1)
}

func TestFollowRoutes(t *testing.T) {
	h := newTestServer(t)

	a := decode[model.User](t, do(t, h, jsonRequest(http.MethodPost, "/api/users", `{"name":"A","email":"a@example.com"}`)))
	b := decode[model.User](t, do(t, h, jsonRequest(http.MethodPost, "/api/users", `{"name":"B","email":"b@example.com"}`)))

	rr := do(t, h, httptest.NewRequest(http.MethodPut, "/api/users/"+a.ID+"/follow/"+b.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, httptest.NewRequest(http.MethodPut, "/api/users/"+a.ID+"/follow/"+b.ID, nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodPut, "/api/users/"+a.ID+"/follow/"+a.ID, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/users/"+b.ID+"/followers", nil))
	followers := decode[[]model.User](t, rr)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	rr = do(t, h, httptest.NewRequest(http.MethodPut, "/api/users/"+a.ID+"/unfollow/"+b.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func multipartPost(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPostLifecycleAsGuest(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, multipartPost(t, "/api/posts",
		map[string]string{"description": "first post", "userName": "Grace"},
		map[string]string{"note.txt": "hello media"},
	))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	post := decode[model.Post](t, rr)
	require.Len(t, post.Media, 1)
	assert.True(t, strings.HasPrefix(post.UserID, "user-"))

	rr = do(t, h, httptest.NewRequest(http.MethodGet, post.Media[0].URL, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello media", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "inline")

	rr = do(t, h, jsonRequest(http.MethodPut, "/api/posts/"+post.ID, `{"description":"edit","userId":"someone-else"}`))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, jsonRequest(http.MethodPut, "/api/posts/"+post.ID, `{"description":"edit","userId":"`+post.UserID+`"}`))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, jsonRequest(http.MethodPost, "/api/comments",
		`{"postId":"`+post.ID+`","userId":"guest","content":"nice"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	comment := decode[model.Comment](t, rr)
	assert.Equal(t, "Guest", comment.UserName)

	rr = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/comments/"+comment.ID+"/stranger", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/comments/"+comment.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/comments/"+comment.ID+"/"+post.UserID, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/comments/"+comment.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/posts/"+post.ID+"?userId="+post.UserID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/posts/"+post.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCourseUploadIsServedStatically(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "lesson.mp4")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, "video-bytes")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := do(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	name := rr.Body.String()
	assert.True(t, strings.HasSuffix(name, "_lesson.mp4"))

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "video-bytes", rr.Body.String())
}

func TestUploadsDirectoryIsNotListed(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "intro.mp4")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, "video-bytes")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := do(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	name := rr.Body.String()

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), name)
}

func TestProdProfileRequiresCredentials(t *testing.T) {
	h := newTestServerWithProfile(t, config.ProfileProd)

	rr := do(t, h, jsonRequest(http.MethodPost, "/api/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"secret123"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decode[struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}](t, rr)

	// An unverified profile assertion cannot sign in as an existing account.
	rr = do(t, h, jsonRequest(http.MethodPost, "/api/auth/google",
		`{"name":"Mallory","email":"ada@example.com"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, "token", c.Name, "no session cookie on a refused login")
	}

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	update := `{"name":"Mallory","email":"mallory@example.com"}`
	rr = do(t, h, jsonRequest(http.MethodPut, "/api/users/"+reg.User.ID, update))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, jsonRequest(http.MethodPut, "/api/users/"+reg.User.ID+"/password", `{"password":"hijacked1"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := jsonRequest(http.MethodPut, "/api/users/"+reg.User.ID, `{"name":"Ada L","email":"ada@example.com"}`)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	rr = do(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Ada L", decode[model.User](t, rr).Name)

	// Reads stay public.
	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/users/"+reg.User.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := do(t, h, req)

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
